// Package docstruct extracts chapter/topic structure and a content
// summary per document. Results are cached with a short TTL keyed by
// document id; entries go stale only by expiry, so callers may observe
// a structure up to one TTL older than the stored chunks.
package docstruct

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"document-intel/internal/cache"
	"document-intel/internal/models"
	"document-intel/internal/store"
)

const keyTopicCount = 8

var (
	numberedHeadingRe = regexp.MustCompile(`^\s*(?:chapter|section|unit|part)?\s*\d+(\.\d+)*[.):]?\s+\S.{0,80}$`)
	markdownHeadingRe = regexp.MustCompile(`^#{1,6}\s+\S`)
	allCapsRe         = regexp.MustCompile(`^[A-Z][A-Z0-9 ,:'&-]{4,60}$`)
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"as": true, "by": true, "be": true, "from": true, "not": true,
	"have": true, "has": true, "had": true, "will": true, "can": true,
	"its": true, "their": true, "which": true, "into": true, "also": true,
}

type Analyzer struct {
	store store.Store
	cache *cache.TTL[models.DocumentStructure]
	now   cache.Clock
}

// NewAnalyzer builds an analyzer whose cache uses the given TTL and
// clock; pass a nil clock for wall time.
func NewAnalyzer(st store.Store, ttl time.Duration, now cache.Clock) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		store: st,
		cache: cache.NewTTL[models.DocumentStructure](ttl, now),
		now:   now,
	}
}

// Analyze returns the document structure, from cache when fresh. A
// cache hit short-circuits the chunk scan entirely.
func (a *Analyzer) Analyze(ctx context.Context, documentID string) (models.DocumentStructure, error) {
	if cached, ok := a.cache.Get(documentID); ok {
		log.Debug().Str("document_id", documentID).Msg("Structure cache hit")
		return cached, nil
	}

	doc, err := a.store.GetDocument(ctx, documentID)
	if err != nil {
		return models.DocumentStructure{}, err
	}
	chunks, err := a.store.GetChunksByDocument(ctx, documentID)
	if err != nil {
		return models.DocumentStructure{}, err
	}

	structure := models.DocumentStructure{
		DocumentID: documentID,
		Title:      doc.Title,
		TotalPages: doc.Metadata.Pages,
		Chapters:   detectChapters(chunks),
		KeyTopics:  KeyTopics(chunks, keyTopicCount),
		AnalyzedAt: a.now(),
	}
	structure.Summary = fmt.Sprintf("%s: %d chunks, %d chapters. Key topics: %s.",
		doc.Title, len(chunks), len(structure.Chapters), strings.Join(structure.KeyTopics, ", "))

	a.cache.Set(documentID, structure)
	return structure, nil
}

// Invalidate drops the cached structure, for callers that just
// re-ingested a document and cannot wait out the TTL.
func (a *Analyzer) Invalidate(documentID string) {
	a.cache.Delete(documentID)
}

// detectChapters scans chunk lines in ordinal order for heading-like
// patterns: numbered headings, markdown headers and all-caps lines.
func detectChapters(chunks []models.Chunk) []models.Chapter {
	var chapters []models.Chapter
	seen := make(map[string]bool)
	for _, c := range chunks {
		for _, line := range strings.Split(c.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !markdownHeadingRe.MatchString(line) &&
				!numberedHeadingRe.MatchString(line) &&
				!allCapsRe.MatchString(line) {
				continue
			}
			title := strings.TrimSpace(strings.TrimLeft(line, "# "))
			if title == "" || seen[title] {
				continue
			}
			seen[title] = true
			chapters = append(chapters, models.Chapter{
				Title:   title,
				Ordinal: len(chapters),
				Page:    c.Page,
			})
		}
	}
	return chapters
}

// KeyTopics returns the most frequent content words after stop-word
// removal. The ingestion pipeline also uses it to fill the topic list
// in the document metadata.
func KeyTopics(chunks []models.Chunk, n int) []string {
	freq := make(map[string]int)
	for _, c := range chunks {
		for _, w := range strings.Fields(strings.ToLower(c.Text)) {
			w = strings.Trim(w, ".,;:!?()[]{}\"'#*")
			if len(w) < 3 || stopWords[w] {
				continue
			}
			freq[w]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
