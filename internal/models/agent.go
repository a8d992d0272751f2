package models

// AgenticStep records one tool-selection/execution round of a reasoning
// session. Steps are append-only and never mutated afterwards.
type AgenticStep struct {
	Number        int
	Tool          string
	Input         string
	OutputPreview string
	Reflection    string
}

// AgenticResult is the final product of one reasoning session. Confidence
// is a bounded heuristic in [0,100] built from source count and step count,
// not a calibrated probability.
type AgenticResult struct {
	Answer     string
	Sources    []SearchResult
	Steps      []AgenticStep
	Confidence float64
	Aborted    bool
}
