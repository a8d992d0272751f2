package models

// QueryIntent is a closed set of retrieval-strategy-relevant query classes.
type QueryIntent string

const (
	IntentExploratory   QueryIntent = "exploratory"
	IntentFactual       QueryIntent = "factual"
	IntentSummary       QueryIntent = "summary"
	IntentComparison    QueryIntent = "comparison"
	IntentClarification QueryIntent = "clarification"
	IntentProcedural    QueryIntent = "procedural"
	IntentSpecific      QueryIntent = "specific"
)

// QueryClassification carries the inferred intent and the retrieval plan
// derived from it.
type QueryClassification struct {
	Query            string
	Intent           QueryIntent
	Confidence       float64
	ExpandedQueries  []string
	SuggestedChunks  int
	NeedsFullContext bool
}
