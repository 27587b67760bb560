// Package quality provides the quality gate and evaluation-response parsing
// for the generation pipeline.
package quality

// ScoreMin and ScoreMax bound the evaluation score scale.
const (
	ScoreMin = 1
	ScoreMax = 10
)

// DefaultThreshold is the score below which content is improved.
const DefaultThreshold = 7

// NeedsImprovement reports whether a scored unit must go through the
// improvement phase. Scores equal to the threshold pass the gate.
func NeedsImprovement(score, threshold int) bool {
	return score < threshold
}
