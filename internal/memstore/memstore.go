// Package memstore is an in-process chunk store backed by chromem-go
// for vector search and a term-frequency scan for lexical search. It
// serves local mode and tests; the Postgres store is the production
// implementation.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"document-intel/internal/models"
	"document-intel/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	vdb       *chromem.DB
	documents map[string]*models.Document
	chunks    map[string][]models.Chunk // by document id, ordinal order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		vdb:       chromem.NewDB(),
		documents: make(map[string]*models.Document),
		chunks:    make(map[string][]models.Chunk),
	}
}

func (s *Store) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.documents[doc.ID] = &cp
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *Store) SetDocumentStatus(_ context.Context, id, status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Status = status
	doc.Error = message
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetDocumentMetadata(_ context.Context, id string, meta models.DocumentMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Metadata = meta
	doc.UpdatedAt = time.Now()
	return nil
}

func collectionName(documentID string) string {
	return "doc-" + documentID
}

// UpsertChunks swaps the document's chunk set under the write lock, so
// readers either see the old generation or the new one, never a mix.
func (s *Store) UpsertChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := collectionName(documentID)
	if err := s.dropCollection(name); err != nil {
		return err
	}

	// Chunks without a vector stay out of the collection; they remain
	// reachable through lexical search.
	var docs []chromem.Document
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  map[string]string{"document_id": documentID},
			Embedding: c.Embedding,
		})
	}
	if len(docs) > 0 {
		coll, err := s.vdb.GetOrCreateCollection(name, nil, nil)
		if err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		if err := coll.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("adding documents: %w", err)
		}
	}

	cp := make([]models.Chunk, len(chunks))
	copy(cp, chunks)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Ordinal < cp[j].Ordinal })
	s.chunks[documentID] = cp
	return nil
}

func (s *Store) GetChunksByDocument(_ context.Context, documentID string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.chunks[documentID]
	out := make([]models.Chunk, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) DeleteChunksByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return s.dropCollection(collectionName(documentID))
}

func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, documentIDs []string, k int) ([]store.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := documentIDs
	if len(ids) == 0 {
		ids = make([]string, 0, len(s.chunks))
		for id := range s.chunks {
			ids = append(ids, id)
		}
	}

	chunkByID := make(map[string]models.Chunk)
	var hits []store.VectorHit
	for _, docID := range ids {
		for _, c := range s.chunks[docID] {
			chunkByID[c.ID] = c
		}
		coll := s.vdb.GetCollection(collectionName(docID), nil)
		if coll == nil || coll.Count() == 0 {
			continue
		}
		n := k
		if count := coll.Count(); n > count {
			n = count
		}
		results, err := coll.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying collection: %w", err)
		}
		for _, r := range results {
			c, ok := chunkByID[r.ID]
			if !ok {
				continue
			}
			hits = append(hits, store.VectorHit{Chunk: c, Similarity: float64(r.Similarity)})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// LexicalSearch scores chunks by query-term frequency. Rank is the sum
// of per-term occurrence counts, weighted so that matching more distinct
// terms beats repeating one term.
func (s *Store) LexicalSearch(_ context.Context, queryTerms string, documentIDs []string, k int) ([]store.LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := tokenize(queryTerms)
	if len(terms) == 0 {
		return nil, nil
	}

	ids := documentIDs
	if len(ids) == 0 {
		ids = make([]string, 0, len(s.chunks))
		for id := range s.chunks {
			ids = append(ids, id)
		}
	}

	var hits []store.LexicalHit
	for _, docID := range ids {
		for _, c := range s.chunks[docID] {
			text := strings.ToLower(c.Text)
			matched := 0
			score := 0.0
			for _, term := range terms {
				if n := strings.Count(text, term); n > 0 {
					matched++
					score += float64(n)
				}
			}
			if matched == 0 {
				continue
			}
			rank := float64(matched)*10 + score
			hits = append(hits, store.LexicalHit{Chunk: c, Rank: rank})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Rank > hits[j].Rank })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) dropCollection(name string) error {
	if s.vdb.GetCollection(name, nil) == nil {
		return nil
	}
	return s.vdb.DeleteCollection(name)
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'")
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
