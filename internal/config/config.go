package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses both "30s" style strings and raw nanosecond ints,
// which plain time.Duration fields do not under yaml.v3.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // "openai" or "ollama"
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Model    string        `yaml:"model"`
	Timeout  Duration      `yaml:"timeout"`
}

// ChunkingConfig holds the tunables of the semantic chunker. Tier
// thresholds are in total document words, sizes in words per chunk.
type ChunkingConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ShortDocWords       int     `yaml:"short_doc_words"`
	MediumDocWords      int     `yaml:"medium_doc_words"`
	ShortDocChunkWords  int     `yaml:"short_doc_chunk_words"`
	MediumDocChunkWords int     `yaml:"medium_doc_chunk_words"`
	LongDocChunkWords   int     `yaml:"long_doc_chunk_words"`
	EmbedBatchSize      int     `yaml:"embed_batch_size"`
}

type AgentConfig struct {
	MaxSteps         int `yaml:"max_steps"`
	ReflectionCutoff int `yaml:"reflection_cutoff"`
	OutputPreviewLen int `yaml:"output_preview_len"`
	ContextTokens    int `yaml:"context_tokens"`
	ResponseReserve  int `yaml:"response_reserve"`
}

type Config struct {
	Database          DatabaseConfig `yaml:"database"`
	EmbedLLM          LLMConfig      `yaml:"embed_llm"`
	ChatLLM           LLMConfig      `yaml:"chat_llm"`
	FallbackLLM       *LLMConfig     `yaml:"fallback_llm,omitempty"`
	Chunking          ChunkingConfig `yaml:"chunking"`
	Agent             AgentConfig    `yaml:"agent"`
	TokenizerModel    string         `yaml:"tokenizer_model"`
	EmbeddingDims     int            `yaml:"embedding_dims"`
	StructureCacheTTL Duration       `yaml:"structure_cache_ttl"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults so a sparse
// config file still yields a working pipeline.
func (c *Config) ApplyDefaults() {
	if c.Chunking.SimilarityThreshold == 0 {
		c.Chunking.SimilarityThreshold = 0.55
	}
	if c.Chunking.ShortDocWords == 0 {
		c.Chunking.ShortDocWords = 5000
	}
	if c.Chunking.MediumDocWords == 0 {
		c.Chunking.MediumDocWords = 20000
	}
	if c.Chunking.ShortDocChunkWords == 0 {
		c.Chunking.ShortDocChunkWords = 350
	}
	if c.Chunking.MediumDocChunkWords == 0 {
		c.Chunking.MediumDocChunkWords = 250
	}
	if c.Chunking.LongDocChunkWords == 0 {
		c.Chunking.LongDocChunkWords = 180
	}
	if c.Chunking.EmbedBatchSize == 0 {
		c.Chunking.EmbedBatchSize = 100
	}
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = 5
	}
	if c.Agent.ReflectionCutoff == 0 {
		c.Agent.ReflectionCutoff = 3
	}
	if c.Agent.OutputPreviewLen == 0 {
		c.Agent.OutputPreviewLen = 200
	}
	if c.Agent.ContextTokens == 0 {
		c.Agent.ContextTokens = 8192
	}
	if c.Agent.ResponseReserve == 0 {
		c.Agent.ResponseReserve = 1024
	}
	if c.TokenizerModel == "" {
		c.TokenizerModel = "gpt-4o"
	}
	if c.EmbeddingDims == 0 {
		c.EmbeddingDims = 768
	}
	if c.StructureCacheTTL == 0 {
		c.StructureCacheTTL = Duration(5 * time.Minute)
	}
	if c.EmbedLLM.Timeout == 0 {
		c.EmbedLLM.Timeout = Duration(30 * time.Second)
	}
	if c.ChatLLM.Timeout == 0 {
		c.ChatLLM.Timeout = Duration(60 * time.Second)
	}
	if c.FallbackLLM != nil && c.FallbackLLM.Timeout == 0 {
		c.FallbackLLM.Timeout = Duration(60 * time.Second)
	}
}
