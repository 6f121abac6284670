// Package gate decides whether a scored candidate may be persisted.
package gate

// Gate applies a single acceptance threshold. The zero value admits any
// score of 0 or more.
type Gate struct {
	threshold int
}

// New returns a gate admitting scores >= threshold.
func New(threshold int) Gate {
	return Gate{threshold: threshold}
}

// Admit reports whether score is present and meets the threshold.
func (g Gate) Admit(score *int) bool {
	return score != nil && *score >= g.threshold
}

// Threshold returns the configured threshold, for display.
func (g Gate) Threshold() int {
	return g.threshold
}
