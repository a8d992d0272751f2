// Package agent runs the bounded reasoning loop: plan, pick a tool,
// gather evidence, reflect, synthesize a cited answer.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-intel/internal/llm"
	"document-intel/internal/models"
	"document-intel/internal/retrieval"
	"document-intel/internal/tokenbudget"
)

type Config struct {
	MaxSteps         int
	ReflectionCutoff int
	OutputPreviewLen int
	ContextTokens    int
	ResponseReserve  int
}

// Retriever is the slice of the hybrid engine the loop drives.
type Retriever interface {
	Search(ctx context.Context, req retrieval.Request) ([]models.SearchResult, error)
}

// StructureProvider supplies chapter/summary context for the
// get_document_sections tool; may be nil.
type StructureProvider interface {
	Analyze(ctx context.Context, documentID string) (models.DocumentStructure, error)
}

type Loop struct {
	provider  llm.Provider
	retriever Retriever
	structure StructureProvider
	counter   *tokenbudget.Counter
	cfg       Config
}

func NewLoop(provider llm.Provider, retriever Retriever, structure StructureProvider, counter *tokenbudget.Counter, cfg Config) *Loop {
	if cfg.MaxSteps <= 0 || cfg.MaxSteps > 5 {
		cfg.MaxSteps = 5
	}
	if cfg.ReflectionCutoff <= 0 {
		cfg.ReflectionCutoff = 3
	}
	if cfg.OutputPreviewLen <= 0 {
		cfg.OutputPreviewLen = 200
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = 8192
	}
	if cfg.ResponseReserve <= 0 {
		cfg.ResponseReserve = 1024
	}
	return &Loop{provider: provider, retriever: retriever, structure: structure, counter: counter, cfg: cfg}
}

// session holds the state owned exclusively by one Run invocation.
type session struct {
	query    string
	docIDs   []string
	evidence []tokenbudget.ScoredChunk
	sources  []models.SearchResult
	seen     map[string]bool
	steps    []models.AgenticStep
}

// Run executes one reasoning session. It is strictly sequential: each
// step's tool choice depends on everything gathered before it. The
// session is abortable between steps via ctx and still returns the
// partial answer and sources gathered so far.
func (l *Loop) Run(ctx context.Context, query string, documentIDs []string) (*models.AgenticResult, error) {
	s := &session{
		query:  query,
		docIDs: documentIDs,
		seen:   make(map[string]bool),
	}

	// The plan is for logging and UX only, never parsed.
	if plan, err := l.provider.Complete(ctx, planSystem, []llm.Message{{Role: "user", Content: query}}); err == nil {
		log.Info().Str("plan", firstLine(plan)).Msg("Agent plan")
	} else {
		log.Warn().Err(err).Msg("Planning call failed, continuing without a plan")
	}

	aborted := false
	gatherSteps := 0
	for stepNo := 1; stepNo <= l.cfg.MaxSteps; stepNo++ {
		if ctx.Err() != nil {
			aborted = true
			break
		}

		call := l.chooseTool(ctx, s)
		if call.Name == models.ToolSynthesizeAnswer {
			s.steps = append(s.steps, models.AgenticStep{
				Number:     stepNo,
				Tool:       call.Name,
				Reflection: "Evidence judged sufficient, moving to synthesis.",
			})
			break
		}

		input, results := l.executeTool(ctx, s, call)
		s.addResults(results)
		gatherSteps++

		outputText := resultsText(results)
		reflection := l.reflect(ctx, s, outputText)
		s.steps = append(s.steps, models.AgenticStep{
			Number:        stepNo,
			Tool:          call.Name,
			Input:         input,
			OutputPreview: preview(outputText, l.cfg.OutputPreviewLen),
			Reflection:    reflection,
		})

		if hasSufficiencyMarker(reflection) || gatherSteps >= l.cfg.ReflectionCutoff {
			break
		}
	}

	answer := l.synthesize(ctx, s, aborted)
	return &models.AgenticResult{
		Answer:     answer,
		Sources:    s.sources,
		Steps:      s.steps,
		Confidence: Confidence(len(s.sources), gatherSteps),
		Aborted:    aborted,
	}, nil
}

// chooseTool asks the LLM to pick the next tool. An unparseable or
// unknown response degrades to a default search with the original query
// rather than aborting the session.
func (l *Loop) chooseTool(ctx context.Context, s *session) *llm.ToolCall {
	state := l.counter.TruncateToLimit(s.describe(), l.stateBudget(), "...")
	call, err := l.provider.CompleteWithTools(ctx, toolChooserSystem, []llm.Message{
		{Role: "user", Content: state},
	}, toolDefs())
	if err != nil {
		log.Warn().Err(err).Msg("Tool choice failed, falling back to default search")
		return defaultSearchCall(s.query)
	}
	switch call.Name {
	case models.ToolSearchDocuments, models.ToolGetDocumentSections,
		models.ToolVerifyInformation, models.ToolSynthesizeAnswer:
		return call
	default:
		log.Warn().Str("tool", call.Name).Msg("Unknown tool requested, falling back to default search")
		return defaultSearchCall(s.query)
	}
}

func defaultSearchCall(query string) *llm.ToolCall {
	return &llm.ToolCall{
		Name:      models.ToolSearchDocuments,
		Arguments: map[string]any{"query": query},
	}
}

// executeTool runs the chosen retrieval tool through the hybrid engine.
func (l *Loop) executeTool(ctx context.Context, s *session, call *llm.ToolCall) (string, []models.SearchResult) {
	req := retrieval.Request{DocumentIDs: s.docIDs}
	input := ""

	switch call.Name {
	case models.ToolGetDocumentSections:
		input = call.StringArg("topic")
		if input == "" {
			input = s.query
		}
		req.Query = input
		req.TopK = 10
		req.SemanticWeight = 0.55
		l.attachStructure(ctx, s)
	case models.ToolVerifyInformation:
		input = call.StringArg("claim")
		if input == "" {
			input = s.query
		}
		req.Query = input
		req.TopK = 4
		req.SemanticWeight = 0.8
	default: // search_documents
		input = call.StringArg("query")
		if input == "" {
			input = s.query
		}
		req.Query = input
		req.TopK = 6
		req.SemanticWeight = 0.7
	}

	results, err := l.retriever.Search(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("Tool execution failed, continuing with no new evidence")
		return input, nil
	}
	return input, results
}

// attachStructure adds chapter/summary context for each candidate
// document to the evidence pool once per session.
func (l *Loop) attachStructure(ctx context.Context, s *session) {
	if l.structure == nil {
		return
	}
	for _, docID := range s.docIDs {
		key := "structure:" + docID
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		structure, err := l.structure.Analyze(ctx, docID)
		if err != nil {
			log.Warn().Err(err).Str("document_id", docID).Msg("Structure analysis failed")
			continue
		}
		s.evidence = append(s.evidence, tokenbudget.ScoredChunk{
			Text:  structure.Summary,
			Score: 0.5,
		})
	}
}

func (l *Loop) reflect(ctx context.Context, s *session, outputText string) string {
	prompt := fmt.Sprintf("Question: %s\n\nLatest evidence:\n%s\n\nIn one or two sentences: is the gathered evidence sufficient to answer, or what is still missing?",
		s.query, l.counter.TruncateToLimit(outputText, l.stateBudget(), "..."))
	reflection, err := l.provider.Complete(ctx, reflectionSystem, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Warn().Err(err).Msg("Reflection call failed")
		return ""
	}
	return strings.TrimSpace(reflection)
}

// synthesize produces the final cited answer. Evidence that does not
// fit the context budget is packed by source relevance, not naively
// truncated. Synthesis always yields an answer object, even on partial
// or empty evidence.
func (l *Loop) synthesize(ctx context.Context, s *session, aborted bool) string {
	numbered := make([]tokenbudget.ScoredChunk, 0, len(s.sources)+len(s.evidence))
	for i, src := range s.sources {
		numbered = append(numbered, tokenbudget.ScoredChunk{
			Text:  fmt.Sprintf("[%d] %s", i+1, src.Chunk.Text),
			Score: src.CombinedScore,
		})
	}
	numbered = append(numbered, s.evidence...)

	budget := l.counter.ComputeBudget(l.cfg.ContextTokens, []string{synthesisSystem, s.query}, l.cfg.ResponseReserve)
	evidenceBlock := l.counter.PrioritizeAndTruncate(numbered, budget)

	if evidenceBlock == "" {
		return "I could not find relevant information in the selected documents to answer this question."
	}

	prompt := fmt.Sprintf("Numbered sources:\n%s\n\nQuestion: %s\n\nAnswer using the sources, citing them inline as [1], [2], ...", evidenceBlock, s.query)
	answer, err := l.provider.Complete(ctx, synthesisSystem, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Warn().Err(err).Msg("Synthesis call failed, returning evidence-only answer")
		if aborted {
			return "The session was interrupted before an answer could be written. The collected sources are attached."
		}
		return "An answer could not be generated, but the collected sources are attached."
	}
	return strings.TrimSpace(answer)
}

func (s *session) addResults(results []models.SearchResult) {
	for _, r := range results {
		if s.seen[r.Chunk.ID] {
			continue
		}
		s.seen[r.Chunk.ID] = true
		s.sources = append(s.sources, r)
		s.evidence = append(s.evidence, tokenbudget.ScoredChunk{Text: r.Chunk.Text, Score: r.CombinedScore})
	}
}

// describe summarizes the session for the tool-chooser call.
func (s *session) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", s.query)
	fmt.Fprintf(&b, "Steps taken: %d, sources gathered: %d\n", len(s.steps), len(s.sources))
	for _, step := range s.steps {
		fmt.Fprintf(&b, "- step %d used %s(%q): %s\n", step.Number, step.Tool, step.Input, step.Reflection)
	}
	if len(s.evidence) > 0 {
		b.WriteString("Evidence so far:\n")
		for _, e := range s.evidence {
			b.WriteString(e.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (l *Loop) stateBudget() int {
	return l.counter.ComputeBudget(l.cfg.ContextTokens, []string{toolChooserSystem}, l.cfg.ResponseReserve)
}

func hasSufficiencyMarker(reflection string) bool {
	lower := strings.ToLower(reflection)
	return strings.Contains(lower, "sufficient") || strings.Contains(lower, "complete")
}

func resultsText(results []models.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Chunk.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
