// Package pipeline drives a single generation unit through its phases:
// generate, evaluate, and conditionally improve, persisting after every
// transition so any crash leaves a resumable record.
package pipeline

import "fmt"

// Mode selects how far the orchestrator takes a unit.
type Mode string

const (
	// ModeGenerateOnly stops after generation; units end in the Generated
	// phase and can be evaluated by a later run.
	ModeGenerateOnly Mode = "generate"
	// ModeGenerateAndEvaluate scores the content but never improves it.
	ModeGenerateAndEvaluate Mode = "evaluate"
	// ModeFullPipeline generates, evaluates, and improves gated-in content.
	ModeFullPipeline Mode = "full"
)

// ParseMode converts a string into a Mode, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGenerateOnly, ModeGenerateAndEvaluate, ModeFullPipeline:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown pipeline mode %q (want generate, evaluate, or full)", s)
}
