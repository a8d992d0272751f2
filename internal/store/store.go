// Package store defines the persistence surface the pipeline depends
// on. The core uses only these operations; durability and transactions
// belong to the backing implementation.
package store

import (
	"context"
	"errors"

	"document-intel/internal/models"
)

// ErrDocumentNotFound is returned by document lookups for unknown ids.
var ErrDocumentNotFound = errors.New("document not found")

// VectorHit is a chunk with its cosine similarity to the query vector.
type VectorHit struct {
	Chunk      models.Chunk
	Similarity float64
}

// LexicalHit is a chunk with its full-text match rank.
type LexicalHit struct {
	Chunk models.Chunk
	Rank  float64
}

type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	SetDocumentStatus(ctx context.Context, id, status, message string) error
	SetDocumentMetadata(ctx context.Context, id string, meta models.DocumentMetadata) error

	// UpsertChunks replaces the document's chunk set atomically: old
	// chunks are never visible to search mid-replacement.
	UpsertChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error

	// VectorSearch returns the k chunks with highest cosine similarity,
	// optionally filtered to a document set.
	VectorSearch(ctx context.Context, queryEmbedding []float32, documentIDs []string, k int) ([]VectorHit, error)

	// LexicalSearch returns the k best ranked full-text matches for the
	// query terms, optionally filtered to a document set.
	LexicalSearch(ctx context.Context, queryTerms string, documentIDs []string, k int) ([]LexicalHit, error)
}
