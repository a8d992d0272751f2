// Package intent classifies a user query into a retrieval-strategy
// class and derives the retrieval plan for it.
package intent

import (
	"regexp"
	"strings"

	"document-intel/internal/models"
)

const (
	minConfidence    = 0.3
	maxChunkCount    = 15
	shortQueryWords  = 6
	vaguenessBoost   = 4.0
	phraseScore      = 2.0
	patternScore     = 3.0
	longQueryStep    = 8 // words per +1 chunk adjustment
)

type category struct {
	intent      models.QueryIntent
	phrases     []string
	patterns    []*regexp.Regexp
	baseChunks  int
	expansions  []string
	fullContext bool
}

// vague wordings that push very short queries toward exploratory; the
// Hindi forms cover transliterated queries like "kya hai is document me".
var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^what('?s| is)? (in|this|it)`),
	regexp.MustCompile(`(?i)\babout (this|the) (doc|document|file|pdf)`),
	regexp.MustCompile(`(?i)\bkya (hai|h)\b`),
	regexp.MustCompile(`(?i)\bis (document|file) me\b`),
	regexp.MustCompile(`(?i)^tell me about\b`),
}

var categories = []category{
	{
		intent: models.IntentExploratory,
		phrases: []string{
			"what is in", "whats in", "what's in", "about this document",
			"kya hai", "contents of", "what does this", "explore",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^what`),
			regexp.MustCompile(`(?i)\b(overview|contents?)\b`),
		},
		baseChunks: 10,
		expansions: []string{
			"main topics and concepts",
			"overview and structure",
			"key points of the document",
		},
		fullContext: true,
	},
	{
		intent: models.IntentSummary,
		phrases: []string{
			"summarize", "summarise", "summary", "tldr", "in short",
			"brief overview", "main points",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bsum (it |this )?up\b`),
		},
		baseChunks: 10,
		expansions: []string{
			"main points and conclusions",
			"chapter and section summaries",
		},
		fullContext: true,
	},
	{
		intent: models.IntentComparison,
		phrases: []string{
			"compare", "comparison", "difference between", "versus", " vs ",
			"better than", "similarities",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bdiffer(s|ence)?\b`),
		},
		baseChunks: 8,
		expansions: []string{
			"differences and similarities",
			"advantages and disadvantages",
		},
	},
	{
		intent: models.IntentClarification,
		phrases: []string{
			"what do you mean", "explain again", "clarify", "confused",
			"didn't understand", "didnt understand", "in simple terms",
		},
		baseChunks: 6,
		expansions: []string{"simple explanation with examples"},
	},
	{
		intent: models.IntentProcedural,
		phrases: []string{
			"how to", "how do i", "how can i", "steps to", "procedure",
			"process of", "guide to",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^how\b`),
		},
		baseChunks: 7,
		expansions: []string{"step by step instructions"},
	},
	{
		intent: models.IntentFactual,
		phrases: []string{
			"when did", "when was", "who is", "who was", "where is",
			"how many", "how much", "what year", "define",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(when|who|where)\b`),
		},
		baseChunks: 4,
	},
}

// Classify scores the query against every category by phrase containment
// and pattern matches; the winner becomes the intent, specific is the
// fallback. Classification is deterministic: the same query always
// yields the same intent and confidence.
func Classify(query string) models.QueryClassification {
	normalized := strings.ToLower(strings.TrimSpace(query))
	wordCount := len(strings.Fields(normalized))

	scores := make(map[models.QueryIntent]float64, len(categories))
	total := 0.0
	for _, cat := range categories {
		score := 0.0
		for _, p := range cat.phrases {
			if strings.Contains(normalized, p) {
				score += phraseScore
			}
		}
		for _, re := range cat.patterns {
			if re.MatchString(normalized) {
				score += patternScore
			}
		}
		if cat.intent == models.IntentExploratory && wordCount <= shortQueryWords {
			for _, re := range vaguePatterns {
				if re.MatchString(normalized) {
					score += vaguenessBoost
					break
				}
			}
		}
		scores[cat.intent] = score
		total += score
	}

	winner := models.IntentSpecific
	best := 0.0
	for _, cat := range categories {
		if s := scores[cat.intent]; s > best {
			best = s
			winner = cat.intent
		}
	}

	confidence := minConfidence
	if total > 0 && best > 0 {
		confidence = best / total
		if confidence < minConfidence {
			confidence = minConfidence
		}
	}

	cat := lookup(winner)
	chunks := cat.baseChunks
	// Longer queries carry more sub-questions; ask for a little more.
	chunks += wordCount / longQueryStep
	if chunks > maxChunkCount {
		chunks = maxChunkCount
	}

	return models.QueryClassification{
		Query:            query,
		Intent:           winner,
		Confidence:       confidence,
		ExpandedQueries:  append([]string(nil), cat.expansions...),
		SuggestedChunks:  chunks,
		NeedsFullContext: cat.fullContext,
	}
}

// lookup returns the category for an intent; specific has no patterns
// and the default plan.
func lookup(intent models.QueryIntent) category {
	for _, cat := range categories {
		if cat.intent == intent {
			return cat
		}
	}
	return category{intent: models.IntentSpecific, baseChunks: 5}
}

// SemanticWeight maps an intent to the semantic/lexical balance of the
// hybrid search: exploratory queries favor lexical recall, targeted
// queries favor semantic precision.
func SemanticWeight(intent models.QueryIntent) float64 {
	switch intent {
	case models.IntentExploratory, models.IntentSummary:
		return 0.5
	case models.IntentFactual, models.IntentSpecific:
		return 0.75
	default:
		return 0.65
	}
}
