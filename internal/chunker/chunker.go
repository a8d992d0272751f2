package chunker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"document-intel/internal/config"
	"document-intel/internal/models"
)

// SentenceEmbedder produces one vector per sentence, batched.
type SentenceEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits raw document text into sentence-coherent, size-bounded
// chunks. Boundaries come from embedding similarity between consecutive
// sentences; when the embedding path fails chunking falls back to pure
// size-based splitting so ingestion never fails on the semantic step.
type Chunker struct {
	policy      config.ChunkingConfig
	embedder    SentenceEmbedder
	countTokens func(string) int
}

func New(policy config.ChunkingConfig, embedder SentenceEmbedder, countTokens func(string) int) *Chunker {
	if countTokens == nil {
		countTokens = func(s string) int { return (len(s) + 3) / 4 }
	}
	return &Chunker{policy: policy, embedder: embedder, countTokens: countTokens}
}

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
	headingRe = regexp.MustCompile(`^(#{1,6}\s+.+|\d+(\.\d+)*[.)]?\s+\S.*|[A-Z][A-Z0-9 ,:'-]{3,})$`)
)

// sentence terminators; the danda covers Devanagari-script documents.
var terminators = map[rune]bool{'.': true, '!': true, '?': true, '。': true, '！': true, '？': true, '।': true}

// Chunk splits text for the given document. Ordinals are dense from 0
// and each chunk carries a content hash and the nearest preceding
// heading as section provenance.
func (c *Chunker) Chunk(ctx context.Context, documentID, text string) ([]models.Chunk, error) {
	sentences := SplitSentences(NormalizeWhitespace(text))
	if len(sentences) == 0 {
		return nil, nil
	}

	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	target := c.TargetChunkWords(totalWords)

	groups := c.semanticGroups(ctx, sentences, target)
	language := detectLanguage(text)

	chunks := make([]models.Chunk, 0, len(groups))
	section := ""
	for _, g := range groups {
		if h := firstHeading(g); h != "" {
			section = h
		}
		chunkText := strings.TrimSpace(strings.Join(g, " "))
		if chunkText == "" {
			continue
		}
		hash := sha256.Sum256([]byte(chunkText))
		chunks = append(chunks, models.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Ordinal:     len(chunks),
			Text:        chunkText,
			TokenCount:  c.countTokens(chunkText),
			ContentHash: hex.EncodeToString(hash[:]),
			Section:     section,
			Language:    language,
		})
	}
	return chunks, nil
}

// TargetChunkWords picks the tier for a document of totalWords words:
// short documents get larger chunks to preserve context, long documents
// smaller ones for retrieval precision.
func (c *Chunker) TargetChunkWords(totalWords int) int {
	switch {
	case totalWords < c.policy.ShortDocWords:
		return c.policy.ShortDocChunkWords
	case totalWords < c.policy.MediumDocWords:
		return c.policy.MediumDocChunkWords
	default:
		return c.policy.LongDocChunkWords
	}
}

// semanticGroups walks sentences in order and groups them into chunks.
// With sentence embeddings available, a similarity drop below the
// configured threshold splits once the current chunk is past 75% of
// target; otherwise only the size rules apply.
func (c *Chunker) semanticGroups(ctx context.Context, sentences []string, target int) [][]string {
	var vectors [][]float32
	if c.embedder != nil {
		var err error
		vectors, err = c.embedder.EmbedTexts(ctx, sentences)
		if err != nil || len(vectors) != len(sentences) {
			log.Warn().Err(err).Msg("Sentence embedding failed, falling back to size-based chunking")
			vectors = nil
		}
	}

	minForSemanticSplit := (target * 3) / 4
	overlong := (target * 3) / 2

	var groups [][]string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentWords = 0
		}
	}

	for i, s := range sentences {
		words := len(strings.Fields(s))

		// An overlong sentence becomes its own chunk without merging.
		if words > overlong {
			flush()
			groups = append(groups, []string{s})
			continue
		}

		if vectors != nil && i > 0 && currentWords > minForSemanticSplit {
			if CosineSimilarity(vectors[i-1], vectors[i]) < c.policy.SimilarityThreshold {
				flush()
			}
		}
		if currentWords+words > target && currentWords > 0 {
			flush()
		}

		current = append(current, s)
		currentWords += words
	}
	flush()
	return groups
}

// NormalizeWhitespace collapses runs of spaces and blank lines while
// keeping paragraph breaks.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRe.ReplaceAllString(text, " ")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitSentences splits on sentence-terminal punctuation followed by
// whitespace, treating newlines as boundaries too so headings stay
// separate sentences.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		atEnd := i == len(runes)-1
		if terminators[r] && (atEnd || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
			continue
		}
		if r == '\n' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// CosineSimilarity of two vectors; zero for mismatched or empty input.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func firstHeading(sentences []string) string {
	for _, s := range sentences {
		if headingRe.MatchString(s) {
			return strings.TrimLeft(s, "# ")
		}
	}
	return ""
}

// detectLanguage is a coarse script-based tag, enough for the language
// field on chunks.
func detectLanguage(text string) string {
	devanagari := 0
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Devanagari, r) {
				devanagari++
			}
		}
		if letters > 2000 {
			break
		}
	}
	if letters > 0 && devanagari*3 > letters {
		return "hi"
	}
	return "en"
}
