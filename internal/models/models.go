package models

import "time"

// Document is a single ingested source (file, url, video transcript or raw text).
type Document struct {
	ID         string
	Title      string
	SourceKind string
	Status     string
	Error      string
	Metadata   DocumentMetadata
	OwnerID    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentMetadata is filled in by the ingestion pipeline.
type DocumentMetadata struct {
	Pages      int      `json:"pages,omitempty"`
	WordCount  int      `json:"word_count,omitempty"`
	ChunkCount int      `json:"chunk_count,omitempty"`
	Language   string   `json:"language,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

// Chunk is a contiguous slice of a document's extracted text. Text is
// immutable once created; re-ingestion replaces the whole chunk set.
type Chunk struct {
	ID          string
	DocumentID  string
	Ordinal     int
	Text        string
	TokenCount  int
	ContentHash string
	Page        int
	Section     string
	Embedding   []float32
	Language    string
}

// SearchResult is one ranked hit out of the hybrid retrieval engine.
// CombinedScore fuses the max-normalized semantic and lexical signals.
type SearchResult struct {
	Chunk         Chunk
	DocumentID    string
	SemanticScore float64
	LexicalScore  float64
	CombinedScore float64
}

// DocumentStructure is the cached output of the structure analyzer.
type DocumentStructure struct {
	DocumentID string
	Title      string
	TotalPages int
	Chapters   []Chapter
	KeyTopics  []string
	Summary    string
	AnalyzedAt time.Time
}

type Chapter struct {
	Title   string
	Ordinal int
	Page    int
}
