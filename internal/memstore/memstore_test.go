package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-intel/internal/models"
	"document-intel/internal/store"
)

func chunk(id, docID string, ordinal int, text string, embedding []float32) models.Chunk {
	return models.Chunk{
		ID:         id,
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
		Embedding:  embedding,
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	doc := &models.Document{ID: "doc-1", Title: "Manual", Status: models.StatusProcessing}
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Manual", got.Title)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.SetDocumentStatus(ctx, "doc-1", models.StatusReady, ""))
	require.NoError(t, s.SetDocumentMetadata(ctx, "doc-1", models.DocumentMetadata{WordCount: 42}))

	got, err = s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Equal(t, 42, got.Metadata.WordCount)
}

func TestGetDocumentUnknown(t *testing.T) {
	s := New()
	_, err := s.GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestUpsertChunksReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := []models.Chunk{
		chunk("a", "doc-1", 0, "old first", []float32{1, 0}),
		chunk("b", "doc-1", 1, "old second", []float32{0, 1}),
	}
	require.NoError(t, s.UpsertChunks(ctx, "doc-1", first))

	second := []models.Chunk{
		chunk("c", "doc-1", 0, "new only", []float32{1, 1}),
	}
	require.NoError(t, s.UpsertChunks(ctx, "doc-1", second))

	got, err := s.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	// The old generation is gone from vector search too.
	hits, err := s.VectorSearch(ctx, []float32{1, 0}, []string{"doc-1"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Chunk.ID)
}

func TestGetChunksOrdinalOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	unordered := []models.Chunk{
		chunk("c", "doc-1", 2, "third", []float32{1, 0}),
		chunk("a", "doc-1", 0, "first", []float32{1, 0}),
		chunk("b", "doc-1", 1, "second", []float32{1, 0}),
	}
	require.NoError(t, s.UpsertChunks(ctx, "doc-1", unordered))

	got, err := s.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestVectorSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := New()

	chunks := []models.Chunk{
		chunk("near", "doc-1", 0, "close match", []float32{1, 0}),
		chunk("far", "doc-1", 1, "distant", []float32{0, 1}),
	}
	require.NoError(t, s.UpsertChunks(ctx, "doc-1", chunks))

	hits, err := s.VectorSearch(ctx, []float32{1, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Chunk.ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorSearchDocumentFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.UpsertChunks(ctx, "doc-1", []models.Chunk{chunk("a", "doc-1", 0, "one", []float32{1, 0})}))
	require.NoError(t, s.UpsertChunks(ctx, "doc-2", []models.Chunk{chunk("b", "doc-2", 0, "two", []float32{1, 0})}))

	hits, err := s.VectorSearch(ctx, []float32{1, 0}, []string{"doc-2"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Chunk.ID)
}

func TestLexicalSearchPrefersDistinctTerms(t *testing.T) {
	ctx := context.Background()
	s := New()

	chunks := []models.Chunk{
		chunk("repeat", "doc-1", 0, "routing routing routing routing", []float32{1, 0}),
		chunk("both", "doc-1", 1, "routing table entries", []float32{0, 1}),
	}
	require.NoError(t, s.UpsertChunks(ctx, "doc-1", chunks))

	hits, err := s.LexicalSearch(ctx, "routing table", nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "both", hits[0].Chunk.ID)
}

func TestLexicalSearchNoTerms(t *testing.T) {
	s := New()
	hits, err := s.LexicalSearch(context.Background(), "a ? !", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteChunksByDocument(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.UpsertChunks(ctx, "doc-1", []models.Chunk{chunk("a", "doc-1", 0, "text", []float32{1, 0})}))
	require.NoError(t, s.DeleteChunksByDocument(ctx, "doc-1"))

	got, err := s.GetChunksByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	hits, err := s.VectorSearch(ctx, []float32{1, 0}, []string{"doc-1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
