package models

import "errors"

// Ingestion-time failures are terminal for the document: status is set to
// error with a message and nothing is retried automatically.
var (
	// ErrExtractionEmpty means the extraction collaborator produced no text.
	ErrExtractionEmpty = errors.New("extraction produced no text")

	// ErrNoChunksCreated means chunking yielded nothing; the chunk store is
	// left untouched.
	ErrNoChunksCreated = errors.New("no chunks created from document text")
)

// Retrieval-time failures degrade gracefully instead of surfacing.
var (
	// ErrEmbeddingService marks a transient embedding backend failure.
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrToolCallParse marks an unparseable LLM tool-call response; the
	// caller substitutes a default search action.
	ErrToolCallParse = errors.New("tool call response did not parse")
)
