package tokenbudget

import (
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const (
	fallbackCharsPerToken = 4
	truncationMarker      = "..."
	chunkSeparator        = "\n\n"
)

// Counter counts tokens with the tokenizer of the target chat model and
// enforces context budgets. When the encoding cannot be loaded it falls
// back to a chars/4 estimate, which is still stable and monotonic.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func NewCounter(model string) *Counter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("No tokenizer for model, using character estimate")
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the token count of text. Never negative.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc == nil {
		return (len(text) + fallbackCharsPerToken - 1) / fallbackCharsPerToken
	}
	return len(c.enc.Encode(text, nil, nil))
}

// ComputeBudget returns the tokens left for retrieved context once the
// fixed prompts and the response reservation are subtracted. Never
// negative.
func (c *Counter) ComputeBudget(modelMaxTokens int, fixedPrompts []string, reservedForResponse int) int {
	available := modelMaxTokens - reservedForResponse
	for _, p := range fixedPrompts {
		available -= c.Count(p)
	}
	if available < 0 {
		return 0
	}
	return available
}

// TruncateToLimit returns a prefix of text such that the prefix plus
// suffix counts at most maxTokens. The cut point starts from a character
// ratio estimate and is refined by halving, so the cost is logarithmic in
// the input size rather than one count per removed token. A budget that
// cannot even fit the suffix yields the empty string.
func (c *Counter) TruncateToLimit(text string, maxTokens int, suffix string) string {
	if maxTokens <= 0 {
		return ""
	}
	if c.Count(text) <= maxTokens {
		return text
	}
	if c.Count(suffix) > maxTokens {
		return ""
	}

	runes := []rune(text)
	total := c.Count(text)
	budget := maxTokens - c.Count(suffix)

	// Initial estimate from the observed characters-per-token ratio.
	cut := int(float64(len(runes)) * float64(budget) / float64(total))
	if cut > len(runes) {
		cut = len(runes)
	}
	for cut > 0 && c.Count(string(runes[:cut])+suffix) > maxTokens {
		cut /= 2
	}
	if cut == 0 {
		return suffix
	}
	return string(runes[:cut]) + suffix
}

// ScoredChunk pairs chunk text with its relevance score for packing.
type ScoredChunk struct {
	Text  string
	Score float64
}

// PrioritizeAndTruncate greedily packs chunks in descending score order.
// A chunk is accepted whole if it fits; the first chunk that overshoots
// is partially truncated and packing stops. The final count is
// re-verified so accumulated rounding never exceeds the budget. A zero
// budget returns empty content, never an error.
func (c *Counter) PrioritizeAndTruncate(chunks []ScoredChunk, maxTokens int) string {
	if maxTokens <= 0 || len(chunks) == 0 {
		return ""
	}

	ordered := make([]ScoredChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	sepTokens := c.Count(chunkSeparator)
	var parts []string
	used := 0
	for _, ch := range ordered {
		sepCost := 0
		if len(parts) > 0 {
			sepCost = sepTokens
		}
		n := c.Count(ch.Text)
		if used+sepCost+n <= maxTokens {
			parts = append(parts, ch.Text)
			used += sepCost + n
			continue
		}
		if remaining := maxTokens - used - sepCost; remaining > 0 {
			if trunc := c.TruncateToLimit(ch.Text, remaining, truncationMarker); trunc != "" {
				parts = append(parts, trunc)
			}
		}
		break
	}

	out := strings.Join(parts, chunkSeparator)
	if c.Count(out) > maxTokens {
		out = c.TruncateToLimit(out, maxTokens, truncationMarker)
	}
	return out
}
