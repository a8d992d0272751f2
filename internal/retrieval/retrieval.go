// Package retrieval fuses semantic and lexical search over the chunk
// store into one ranked result list.
package retrieval

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"document-intel/internal/models"
	"document-intel/internal/store"
)

// candidateFactor widens each underlying search beyond topK so fusion
// has something to re-rank.
const candidateFactor = 3

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Engine struct {
	store    store.Store
	embedder QueryEmbedder
}

func NewEngine(st store.Store, embedder QueryEmbedder) *Engine {
	return &Engine{store: st, embedder: embedder}
}

// Request is one hybrid search call. SemanticWeight in [0,1] balances
// the fused score; it is supplied by the caller (typically from the
// query intent), not hard-coded here.
type Request struct {
	Query           string
	ExpandedQueries []string
	DocumentIDs     []string
	TopK            int
	SemanticWeight  float64
}

// Search runs the original plus expanded queries concurrently, waits for
// all of them, then deduplicates by chunk id keeping the highest
// combined score and returns the top K. A failed sub-search degrades to
// an empty contribution instead of failing the call.
func (e *Engine) Search(ctx context.Context, req Request) ([]models.SearchResult, error) {
	if req.TopK <= 0 {
		req.TopK = 5
	}
	if req.SemanticWeight < 0 {
		req.SemanticWeight = 0
	}
	if req.SemanticWeight > 1 {
		req.SemanticWeight = 1
	}

	queries := append([]string{req.Query}, req.ExpandedQueries...)
	perQuery := make([][]models.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := e.searchOne(gctx, q, req)
			if err != nil {
				// Degrade: one underperforming sub-search must not fail
				// the user-facing query.
				log.Warn().Err(err).Str("query", q).Msg("Sub-search failed, returning no hits for it")
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make(map[string]models.SearchResult)
	for _, results := range perQuery {
		for _, r := range results {
			if prev, ok := best[r.Chunk.ID]; !ok || r.CombinedScore > prev.CombinedScore {
				best[r.Chunk.ID] = r
			}
		}
	}

	merged := make([]models.SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].CombinedScore > merged[j].CombinedScore })
	if len(merged) > req.TopK {
		merged = merged[:req.TopK]
	}
	return merged, nil
}

// searchOne embeds one query and runs vector and lexical search
// concurrently over the candidate documents. An embedding failure
// aborts this sub-search with an empty result set.
func (e *Engine) searchOne(ctx context.Context, query string, req Request) ([]models.SearchResult, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("Query embedding failed, empty result set for this query")
		return nil, nil
	}

	candidates := req.TopK * candidateFactor

	var (
		vecHits []store.VectorHit
		lexHits []store.LexicalHit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecHits, err = e.store.VectorSearch(gctx, vector, req.DocumentIDs, candidates)
		return err
	})
	g.Go(func() error {
		var err error
		lexHits, err = e.store.LexicalSearch(gctx, query, req.DocumentIDs, candidates)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Fuse(vecHits, lexHits, req.SemanticWeight), nil
}

// Fuse max-normalizes both signals and combines them as
// w*semantic + (1-w)*lexical. A chunk present in only one list stays
// eligible with zero for the missing signal. Negative raw scores
// (anti-correlated embeddings) clamp to zero, so combined scores are
// always in [0,1].
func Fuse(vecHits []store.VectorHit, lexHits []store.LexicalHit, semanticWeight float64) []models.SearchResult {
	maxSim := 0.0
	for _, h := range vecHits {
		if h.Similarity > maxSim {
			maxSim = h.Similarity
		}
	}
	maxRank := 0.0
	for _, h := range lexHits {
		if h.Rank > maxRank {
			maxRank = h.Rank
		}
	}

	byID := make(map[string]*models.SearchResult)
	for _, h := range vecHits {
		norm := 0.0
		if maxSim > 0 && h.Similarity > 0 {
			norm = h.Similarity / maxSim
		}
		byID[h.Chunk.ID] = &models.SearchResult{
			Chunk:         h.Chunk,
			DocumentID:    h.Chunk.DocumentID,
			SemanticScore: norm,
		}
	}
	for _, h := range lexHits {
		norm := 0.0
		if maxRank > 0 && h.Rank > 0 {
			norm = h.Rank / maxRank
		}
		if r, ok := byID[h.Chunk.ID]; ok {
			r.LexicalScore = norm
			continue
		}
		byID[h.Chunk.ID] = &models.SearchResult{
			Chunk:        h.Chunk,
			DocumentID:   h.Chunk.DocumentID,
			LexicalScore: norm,
		}
	}

	out := make([]models.SearchResult, 0, len(byID))
	for _, r := range byID {
		r.CombinedScore = semanticWeight*r.SemanticScore + (1-semanticWeight)*r.LexicalScore
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CombinedScore > out[j].CombinedScore })
	return out
}
