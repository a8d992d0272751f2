package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-intel/internal/models"
	"document-intel/internal/store"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

// fakeStore serves canned hits regardless of the query.
type fakeStore struct {
	store.Store
	vecHits []store.VectorHit
	lexHits []store.LexicalHit
	vecErr  error
	lexErr  error
}

func (f *fakeStore) VectorSearch(_ context.Context, _ []float32, _ []string, _ int) ([]store.VectorHit, error) {
	return f.vecHits, f.vecErr
}

func (f *fakeStore) LexicalSearch(_ context.Context, _ string, _ []string, _ int) ([]store.LexicalHit, error) {
	return f.lexHits, f.lexErr
}

func chunk(id string) models.Chunk {
	return models.Chunk{ID: id, DocumentID: "doc-1", Text: "text " + id}
}

func TestFuseCombinedScoreBounds(t *testing.T) {
	vec := []store.VectorHit{
		{Chunk: chunk("a"), Similarity: 0.9},
		{Chunk: chunk("b"), Similarity: 0.3},
		// pgvector similarity is 1 - distance, so anti-correlated
		// embeddings come back negative.
		{Chunk: chunk("anti"), Similarity: -0.4},
	}
	lex := []store.LexicalHit{
		{Chunk: chunk("b"), Rank: 12},
		{Chunk: chunk("c"), Rank: 4},
	}
	for _, w := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, r := range Fuse(vec, lex, w) {
			assert.GreaterOrEqual(t, r.CombinedScore, 0.0)
			assert.LessOrEqual(t, r.CombinedScore, 1.0)
		}
	}
}

func TestFuseNegativeSimilarityClampsToZero(t *testing.T) {
	vec := []store.VectorHit{
		{Chunk: chunk("near"), Similarity: 0.9},
		{Chunk: chunk("anti"), Similarity: -0.4},
	}
	results := Fuse(vec, nil, 0.7)
	require.Len(t, results, 2)

	byID := map[string]models.SearchResult{}
	for _, r := range results {
		byID[r.Chunk.ID] = r
	}
	assert.InDelta(t, 0.0, byID["anti"].SemanticScore, 1e-9)
	assert.InDelta(t, 0.0, byID["anti"].CombinedScore, 1e-9)
	assert.Equal(t, "near", results[0].Chunk.ID)
}

func TestFuseWeightMonotonicity(t *testing.T) {
	vec := []store.VectorHit{
		{Chunk: chunk("semheavy"), Similarity: 0.9},
		{Chunk: chunk("lexheavy"), Similarity: 0.2},
	}
	lex := []store.LexicalHit{
		{Chunk: chunk("semheavy"), Rank: 2},
		{Chunk: chunk("lexheavy"), Rank: 10},
	}

	weights := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	prev := map[string]float64{}
	for i, w := range weights {
		byID := map[string]models.SearchResult{}
		for _, r := range Fuse(vec, lex, w) {
			byID[r.Chunk.ID] = r
		}
		if i > 0 {
			// Raising the semantic weight must not hurt the chunk whose
			// semantic score dominates, and must not help the lexical one.
			assert.GreaterOrEqual(t, byID["semheavy"].CombinedScore, prev["semheavy"])
			assert.LessOrEqual(t, byID["lexheavy"].CombinedScore, prev["lexheavy"])
		}
		for id, r := range byID {
			prev[id] = r.CombinedScore
		}
	}
}

func TestFuseSingleSignalEligible(t *testing.T) {
	vec := []store.VectorHit{{Chunk: chunk("a"), Similarity: 0.8}}
	lex := []store.LexicalHit{{Chunk: chunk("b"), Rank: 5}}

	results := Fuse(vec, lex, 0.6)
	require.Len(t, results, 2)

	byID := map[string]models.SearchResult{}
	for _, r := range results {
		byID[r.Chunk.ID] = r
	}
	assert.InDelta(t, 0.6, byID["a"].CombinedScore, 1e-9)
	assert.InDelta(t, 0.0, byID["a"].LexicalScore, 1e-9)
	assert.InDelta(t, 0.4, byID["b"].CombinedScore, 1e-9)
	assert.InDelta(t, 0.0, byID["b"].SemanticScore, 1e-9)
}

func TestFuseRanksStrongerChunkHigher(t *testing.T) {
	vec := []store.VectorHit{
		{Chunk: chunk("strong"), Similarity: 0.9},
		{Chunk: chunk("weak"), Similarity: 0.2},
	}
	lex := []store.LexicalHit{
		{Chunk: chunk("strong"), Rank: 10},
		{Chunk: chunk("weak"), Rank: 2},
	}
	results := Fuse(vec, lex, 0.5)
	require.Len(t, results, 2)
	assert.Equal(t, "strong", results[0].Chunk.ID)
}

func TestFuseEmptyInput(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, 0.5))
}

func TestSearchDeduplicatesAcrossExpansions(t *testing.T) {
	st := &fakeStore{
		vecHits: []store.VectorHit{{Chunk: chunk("a"), Similarity: 0.9}},
		lexHits: []store.LexicalHit{{Chunk: chunk("a"), Rank: 3}},
	}
	e := NewEngine(st, &fakeEmbedder{})

	results, err := e.Search(context.Background(), Request{
		Query:           "main question",
		ExpandedQueries: []string{"variant one", "variant two"},
		TopK:            10,
		SemanticWeight:  0.6,
	})
	require.NoError(t, err)
	// The same chunk came back from every sub-search but appears once.
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestSearchTopKLimit(t *testing.T) {
	var vec []store.VectorHit
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		vec = append(vec, store.VectorHit{Chunk: chunk(id), Similarity: 0.5})
	}
	st := &fakeStore{vecHits: vec}
	e := NewEngine(st, &fakeEmbedder{})

	results, err := e.Search(context.Background(), Request{Query: "q", TopK: 3, SemanticWeight: 0.7})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchEmbeddingFailureDegrades(t *testing.T) {
	st := &fakeStore{
		vecHits: []store.VectorHit{{Chunk: chunk("a"), Similarity: 0.9}},
	}
	e := NewEngine(st, &fakeEmbedder{err: errors.New("embedding service down")})

	results, err := e.Search(context.Background(), Request{Query: "q", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchStoreFailureDegrades(t *testing.T) {
	st := &fakeStore{vecErr: errors.New("db down"), lexErr: errors.New("db down")}
	e := NewEngine(st, &fakeEmbedder{})

	results, err := e.Search(context.Background(), Request{Query: "q", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchClampsWeight(t *testing.T) {
	st := &fakeStore{
		vecHits: []store.VectorHit{{Chunk: chunk("a"), Similarity: 0.9}},
	}
	e := NewEngine(st, &fakeEmbedder{})

	results, err := e.Search(context.Background(), Request{Query: "q", TopK: 5, SemanticWeight: 4})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].CombinedScore, 1.0)
}
