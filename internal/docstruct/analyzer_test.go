package docstruct

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-intel/internal/models"
	"document-intel/internal/store"
)

// fakeStore counts reads so the cache short-circuit is observable.
type fakeStore struct {
	store.Store
	doc       *models.Document
	chunks    []models.Chunk
	docReads  int
	chunkGets int
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	f.docReads++
	if f.doc == nil || f.doc.ID != id {
		return nil, store.ErrDocumentNotFound
	}
	return f.doc, nil
}

func (f *fakeStore) GetChunksByDocument(_ context.Context, _ string) ([]models.Chunk, error) {
	f.chunkGets++
	return f.chunks, nil
}

func testDoc() *models.Document {
	return &models.Document{
		ID:       "doc-1",
		Title:    "Networking Guide",
		Metadata: models.DocumentMetadata{Pages: 12},
	}
}

func TestAnalyzeDetectsChapters(t *testing.T) {
	st := &fakeStore{
		doc: testDoc(),
		chunks: []models.Chunk{
			{Ordinal: 0, Page: 1, Text: "# Introduction\nRouting moves packets between networks."},
			{Ordinal: 1, Page: 3, Text: "2. Addressing\nEvery interface carries an address."},
			{Ordinal: 2, Page: 7, Text: "TRANSPORT LAYER\nThe transport layer handles reliability."},
		},
	}
	a := NewAnalyzer(st, time.Minute, nil)

	structure, err := a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)

	require.Len(t, structure.Chapters, 3)
	assert.Equal(t, "Introduction", structure.Chapters[0].Title)
	assert.Equal(t, "2. Addressing", structure.Chapters[1].Title)
	assert.Equal(t, "TRANSPORT LAYER", structure.Chapters[2].Title)
	assert.Equal(t, 0, structure.Chapters[0].Ordinal)
	assert.Equal(t, 7, structure.Chapters[2].Page)
	assert.Equal(t, 12, structure.TotalPages)
	assert.NotEmpty(t, structure.Summary)
}

func TestAnalyzeKeyTopicsSkipStopWords(t *testing.T) {
	st := &fakeStore{
		doc: testDoc(),
		chunks: []models.Chunk{
			{Text: "the routing table holds routing entries and the routing daemon updates routing state"},
			{Text: "packets traverse the network and the network drops packets when the network is congested"},
		},
	}
	a := NewAnalyzer(st, time.Minute, nil)

	structure, err := a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)

	require.NotEmpty(t, structure.KeyTopics)
	assert.Equal(t, "routing", structure.KeyTopics[0])
	assert.NotContains(t, structure.KeyTopics, "the")
	assert.NotContains(t, structure.KeyTopics, "and")
	assert.LessOrEqual(t, len(structure.KeyTopics), 8)
}

func TestAnalyzeCacheHit(t *testing.T) {
	st := &fakeStore{doc: testDoc(), chunks: []models.Chunk{{Text: "alpha beta gamma"}}}
	a := NewAnalyzer(st, time.Minute, nil)

	_, err := a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, 1, st.docReads)
	assert.Equal(t, 1, st.chunkGets)
}

func TestAnalyzeCacheExpiry(t *testing.T) {
	st := &fakeStore{doc: testDoc(), chunks: []models.Chunk{{Text: "alpha beta gamma"}}}

	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	a := NewAnalyzer(st, time.Minute, clock)

	_, err := a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)

	current = current.Add(30 * time.Second)
	_, err = a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.docReads)

	current = current.Add(31 * time.Second)
	_, err = a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.docReads)
}

func TestInvalidateDropsCache(t *testing.T) {
	st := &fakeStore{doc: testDoc(), chunks: []models.Chunk{{Text: "alpha beta gamma"}}}
	a := NewAnalyzer(st, time.Hour, nil)

	_, err := a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)

	a.Invalidate("doc-1")
	_, err = a.Analyze(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.docReads)
}

func TestAnalyzeUnknownDocument(t *testing.T) {
	a := NewAnalyzer(&fakeStore{}, time.Minute, nil)
	_, err := a.Analyze(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}
