package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-intel/internal/config"
	"document-intel/internal/models"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ToolDef describes a callable tool in the JSON-schema form the chat
// backends expect.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the validated result of a tool-choice completion.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// StringArg returns a string argument by key, empty when absent.
func (tc *ToolCall) StringArg(key string) string {
	if tc == nil || tc.Arguments == nil {
		return ""
	}
	s, _ := tc.Arguments[key].(string)
	return strings.TrimSpace(s)
}

// Provider is the capability surface the pipeline needs from an LLM
// backend. Implementations must apply their own call timeout.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	CompleteWithTools(ctx context.Context, system string, messages []Message, tools []ToolDef) (*ToolCall, error)
}

// chatEmbedClient is what langchaingo's openai and ollama clients both
// satisfy: chat generation plus embedding creation.
type chatEmbedClient interface {
	llms.Model
	embeddings.EmbedderClient
}

// Client is a langchaingo-backed Provider for any OpenAI-compatible
// endpoint (OpenRouter, OpenAI) or a local Ollama server.
type Client struct {
	name     string
	model    chatEmbedClient
	embedder *embeddings.EmbedderImpl
	cfg      config.LLMConfig
}

func New(cfg config.LLMConfig) (*Client, error) {
	var (
		client chatEmbedClient
		err    error
	)
	switch cfg.Provider {
	case "ollama":
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case "openai", "":
		client, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s client: %w", cfg.Provider, err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Client{
		name:     cfg.Provider + "/" + cfg.Model,
		model:    client,
		embedder: embedder,
		cfg:      cfg,
	}, nil
}

func (c *Client) Name() string { return c.name }

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Std())
	defer cancel()

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingService, len(vectors), len(texts))
	}
	return vectors, nil
}

func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Std())
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, toMessageContent(system, messages))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Content, nil
}

// CompleteWithTools asks the model to pick a tool. The response is an
// untrusted external message: native tool calls and inline JSON content
// are both accepted, anything else fails with ErrToolCallParse so the
// caller can apply its fallback.
func (c *Client) CompleteWithTools(ctx context.Context, system string, messages []Message, tools []ToolDef) (*ToolCall, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout.Std())
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, toMessageContent(system, messages), llms.WithTools(toLLMSTools(tools)))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", models.ErrToolCallParse)
	}

	choice := resp.Choices[0]
	if len(choice.ToolCalls) > 0 && choice.ToolCalls[0].FunctionCall != nil {
		fc := choice.ToolCalls[0].FunctionCall
		args := map[string]any{}
		if raw := strings.TrimSpace(fc.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: bad arguments for %s: %v", models.ErrToolCallParse, fc.Name, err)
			}
		}
		return &ToolCall{Name: fc.Name, Arguments: args}, nil
	}

	// Some models answer with JSON in the content instead of a native
	// tool call.
	return parseInlineToolCall(choice.Content)
}

func parseInlineToolCall(content string) (*ToolCall, error) {
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload struct {
		Tool      string         `json:"tool"`
		Name      string         `json:"name"`
		Input     map[string]any `json:"input"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrToolCallParse, err)
	}
	name := payload.Tool
	if name == "" {
		name = payload.Name
	}
	if name == "" {
		return nil, fmt.Errorf("%w: missing tool name", models.ErrToolCallParse)
	}
	args := payload.Input
	if args == nil {
		args = payload.Arguments
	}
	if args == nil {
		args = map[string]any{}
	}
	return &ToolCall{Name: name, Arguments: args}, nil
}

func toMessageContent(system string, messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages)+1)
	if system != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

func toLLMSTools(tools []ToolDef) []llms.Tool {
	out := make([]llms.Tool, len(tools))
	for i, t := range tools {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// FallbackChain tries providers in order until one succeeds. It replaces
// ad hoc try/catch chains with an explicit policy object.
type FallbackChain struct {
	providers []Provider
}

func NewFallbackChain(providers ...Provider) *FallbackChain {
	return &FallbackChain{providers: providers}
}

func (f *FallbackChain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range f.providers {
		vectors, err := p.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		log.Warn().Err(err).Msg("Embed failed, trying next provider")
	}
	return nil, lastErr
}

func (f *FallbackChain) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	var lastErr error
	for _, p := range f.providers {
		text, err := p.Complete(ctx, system, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		log.Warn().Err(err).Msg("Complete failed, trying next provider")
	}
	return "", lastErr
}

func (f *FallbackChain) CompleteWithTools(ctx context.Context, system string, messages []Message, tools []ToolDef) (*ToolCall, error) {
	var lastErr error
	for _, p := range f.providers {
		call, err := p.CompleteWithTools(ctx, system, messages, tools)
		if err == nil {
			return call, nil
		}
		lastErr = err
		log.Warn().Err(err).Msg("Tool completion failed, trying next provider")
	}
	return nil, lastErr
}
