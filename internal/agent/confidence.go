package agent

// Confidence is a bounded heuristic in [0,100], not a calibrated
// probability: a rough proxy for answer quality that callers should
// present as such. More sources help up to five; two or three gathering
// steps is the sweet spot, fewer means thin evidence and more usually
// means the loop was struggling.
func Confidence(sourceCount, stepCount int) float64 {
	sources := sourceCount
	if sources > 5 {
		sources = 5
	}
	sourceTerm := 12.0 * float64(sources)

	var stepTerm float64
	switch stepCount {
	case 2, 3:
		stepTerm = 40
	case 1, 4:
		stepTerm = 25
	default:
		stepTerm = 15
	}

	score := sourceTerm + stepTerm
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
