package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/llm"
	"github.com/jonathan/glossary-agent/internal/prompts"
	"github.com/jonathan/glossary-agent/internal/quality"
	"github.com/jonathan/glossary-agent/internal/store"
)

// Model tiers per phase. Improvement runs on the advanced tier because it
// reasons over both the draft and the critique.
const (
	generationTier  = llm.TierStandard
	evaluationTier  = llm.TierStandard
	improvementTier = llm.TierAdvanced
)

// persistAttempts bounds retries of a failed store write before the unit is
// marked failed.
const persistAttempts = 3

// MinContentLength rejects generation output shorter than this as a failed
// attempt (providers occasionally return empty or truncated candidates).
const MinContentLength = 10

// Options configures how the orchestrator processes units.
type Options struct {
	Mode             Mode
	QualityThreshold int
	Retry            RetryConfig
	// FallbackTier, when set, is used for the final generation attempt in
	// place of the standard tier. Empty disables the fallback.
	FallbackTier llm.ModelTier
}

// DefaultOptions returns the standard full-pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Mode:             ModeFullPipeline,
		QualityThreshold: quality.DefaultThreshold,
		Retry:            DefaultRetryConfig(),
		FallbackTier:     llm.TierLite,
	}
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeFullPipeline
	}
	if o.QualityThreshold == 0 {
		o.QualityThreshold = quality.DefaultThreshold
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryConfig()
	}
	return o
}

// Orchestrator drives one generation unit at a time through its phases.
type Orchestrator struct {
	units    store.UnitStore
	client   llm.Client
	registry *catalog.Registry
	prompts  *prompts.Store
	opts     Options
	onEvent  EventFunc

	// sleep is replaceable in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// New creates an orchestrator. onEvent may be nil.
func New(units store.UnitStore, client llm.Client, registry *catalog.Registry, promptStore *prompts.Store, opts Options, onEvent EventFunc) *Orchestrator {
	return &Orchestrator{
		units:    units,
		client:   client,
		registry: registry,
		prompts:  promptStore,
		opts:     opts.withDefaults(),
		onEvent:  onEvent,
		sleep:    time.Sleep,
	}
}

// ProcessUnit takes the (term, column) unit through whatever phases remain
// under the configured mode. A unit already in a terminal phase is returned
// unchanged; a unit persisted mid-pipeline resumes from its next incomplete
// phase, never redoing paid-for work. Per-unit failures are recorded on the
// unit (phase Failed), not returned as errors; the returned error is non-nil
// only for cancellation or when the unit cannot be loaded at all.
func (o *Orchestrator) ProcessUnit(ctx context.Context, term store.Term, columnID string) (*store.GenerationUnit, error) {
	col, err := o.registry.GetColumn(columnID)
	if err != nil {
		return nil, err
	}
	bundle, err := o.prompts.Bundle(col)
	if err != nil {
		return nil, err
	}

	unit, err := o.loadUnit(ctx, term.ID, columnID)
	if err != nil {
		return nil, err
	}

	for !unit.Phase.Terminal() {
		// Cancellation is honored at phase boundaries only: the current
		// phase always completes its write before the unit is abandoned.
		if err := ctx.Err(); err != nil {
			return unit, err
		}

		switch unit.Phase {
		case store.PhasePending:
			if err := o.generate(ctx, unit, term, col, bundle); err != nil {
				return unit, err
			}

		case store.PhaseGenerated:
			if o.opts.Mode == ModeGenerateOnly {
				return unit, nil
			}
			if err := o.evaluate(ctx, unit, term, col, bundle); err != nil {
				return unit, err
			}

		case store.PhaseEvaluated:
			if o.opts.Mode == ModeFullPipeline && quality.NeedsImprovement(unit.QualityScore, o.opts.QualityThreshold) {
				if err := o.transition(ctx, unit, store.PhaseImproving); err != nil {
					return unit, err
				}
			} else {
				if err := o.transition(ctx, unit, store.PhaseFinal); err != nil {
					return unit, err
				}
			}

		case store.PhaseImproving:
			// A unit left mid-improvement by an earlier full run finalizes
			// under narrower modes instead of spending an improvement call.
			if o.opts.Mode != ModeFullPipeline {
				if err := o.transition(ctx, unit, store.PhaseFinal); err != nil {
					return unit, err
				}
				continue
			}
			if err := o.improve(ctx, unit, term, col, bundle); err != nil {
				return unit, err
			}
		}
	}

	return unit, nil
}

// loadUnit fetches the persisted unit or creates a fresh Pending one. A
// persisted record that claims progress but carries no content is treated as
// Pending again (a crash can leave a phase write without its content write
// only through manual tampering, but cheap reconciliation beats a stuck row).
func (o *Orchestrator) loadUnit(ctx context.Context, termID, columnID string) (*store.GenerationUnit, error) {
	unit, found, err := o.units.Get(ctx, termID, columnID)
	if err != nil {
		return nil, err
	}
	if !found {
		return &store.GenerationUnit{
			TermID:   termID,
			ColumnID: columnID,
			Phase:    store.PhasePending,
		}, nil
	}

	switch unit.Phase {
	case store.PhaseGenerated, store.PhaseEvaluated, store.PhaseImproving:
		if strings.TrimSpace(unit.Content) == "" {
			unit.Phase = store.PhasePending
		}
	}
	return unit, nil
}

// generate runs the generation phase: build the prompt from term and column
// metadata, invoke the model with retry, and persist the draft.
func (o *Orchestrator) generate(ctx context.Context, unit *store.GenerationUnit, term store.Term, col catalog.ColumnDefinition, bundle prompts.Bundle) error {
	prompt := prompts.Format(bundle.Generate, map[string]string{
		"Term":    term.Name,
		"Column":  col.Title,
		"Section": col.Section,
	})

	result, err := o.invokeWithRetry(ctx, unit, prompt, generationTier, true)
	if err != nil {
		return o.handlePhaseError(ctx, unit, err)
	}

	unit.Content = strings.TrimSpace(result.Text)
	o.accumulate(unit, result)
	return o.transition(ctx, unit, store.PhaseGenerated)
}

// evaluate runs the evaluation phase: score the draft and persist score and
// feedback. A malformed response fails the unit immediately; the tokens
// consumed by the malformed call are still recorded.
func (o *Orchestrator) evaluate(ctx context.Context, unit *store.GenerationUnit, term store.Term, col catalog.ColumnDefinition, bundle prompts.Bundle) error {
	prompt := prompts.Format(bundle.Evaluate, map[string]string{
		"Term":    term.Name,
		"Column":  col.Title,
		"Section": col.Section,
		"Content": unit.Content,
	})

	result, err := o.invokeWithRetry(ctx, unit, prompt, evaluationTier, false)
	if err != nil {
		return o.handlePhaseError(ctx, unit, err)
	}

	o.accumulate(unit, result)

	eval, err := quality.ParseEvaluation(result.Text)
	if err != nil {
		return o.failUnit(ctx, unit, err)
	}

	unit.QualityScore = eval.Score
	unit.EvaluationFeedback = eval.Feedback
	return o.transition(ctx, unit, store.PhaseEvaluated)
}

// improve runs the improvement phase: rewrite the draft against the critique
// and finalize. Improvement happens at most once per unit per run; the
// improved text is not re-evaluated, bounding every unit to three calls.
func (o *Orchestrator) improve(ctx context.Context, unit *store.GenerationUnit, term store.Term, col catalog.ColumnDefinition, bundle prompts.Bundle) error {
	prompt := prompts.Format(bundle.Improve, map[string]string{
		"Term":     term.Name,
		"Column":   col.Title,
		"Section":  col.Section,
		"Content":  unit.Content,
		"Feedback": unit.EvaluationFeedback,
	})

	result, err := o.invokeWithRetry(ctx, unit, prompt, improvementTier, false)
	if err != nil {
		return o.handlePhaseError(ctx, unit, err)
	}

	improved := strings.TrimSpace(result.Text)
	if improved != "" {
		unit.Content = improved
	}
	o.accumulate(unit, result)
	return o.transition(ctx, unit, store.PhaseFinal)
}

// invokeWithRetry calls the model up to MaxAttempts times with exponential
// backoff, recording the attempt count on the unit. When allowFallback is set
// and a fallback tier is configured, the final attempt downgrades to it.
// Failed attempts report no usage, so only the successful call is costed.
func (o *Orchestrator) invokeWithRetry(ctx context.Context, unit *store.GenerationUnit, prompt string, tier llm.ModelTier, allowFallback bool) (*llm.Result, error) {
	maxAttempts := o.opts.Retry.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		unit.Attempts = attempt

		callTier := tier
		if allowFallback && o.opts.FallbackTier != "" && attempt == maxAttempts && maxAttempts > 1 {
			callTier = o.opts.FallbackTier
		}

		// The call must never be interrupted mid-phase by batch
		// cancellation; the client applies its own per-call timeout.
		result, err := o.client.Generate(context.WithoutCancel(ctx), prompt, callTier)
		if err == nil {
			if len(strings.TrimSpace(result.Text)) < MinContentLength {
				lastErr = fmt.Errorf("content too short (%d chars)", len(strings.TrimSpace(result.Text)))
			} else {
				return result, nil
			}
		} else {
			lastErr = err
		}

		if attempt < maxAttempts {
			o.sleep(o.opts.Retry.backoff(attempt))
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

// handlePhaseError distinguishes cancellation (unit left resumable at its
// last persisted phase) from exhausted failures (unit marked Failed).
func (o *Orchestrator) handlePhaseError(ctx context.Context, unit *store.GenerationUnit, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return o.failUnit(ctx, unit, err)
}

// failUnit records the error on the unit and moves it to Failed. A failed
// unit never fails the batch; it is counted and eligible for a reset pass.
func (o *Orchestrator) failUnit(ctx context.Context, unit *store.GenerationUnit, cause error) error {
	unit.LastError = cause.Error()
	return o.transition(ctx, unit, store.PhaseFailed)
}

// accumulate adds a successful call's usage to the unit's append-only ledger.
func (o *Orchestrator) accumulate(unit *store.GenerationUnit, result *llm.Result) {
	unit.TokensIn += result.Usage.TokensIn
	unit.TokensOut += result.Usage.TokensOut
	unit.CostUSD += llm.Cost(result.Model, result.Usage)
}

// transition moves the unit to the next phase, persists it, and emits a
// progress event. Store writes get a bounded retry before the transition is
// abandoned.
func (o *Orchestrator) transition(ctx context.Context, unit *store.GenerationUnit, phase store.Phase) error {
	unit.Phase = phase
	unit.UpdatedAt = time.Now()

	if err := o.persist(ctx, unit); err != nil {
		// A failed write of the Failed phase has nowhere to go; report it.
		if phase == store.PhaseFailed {
			return err
		}
		unit.Phase = store.PhaseFailed
		unit.LastError = err.Error()
		if persistErr := o.persist(ctx, unit); persistErr != nil {
			return persistErr
		}
	}

	o.emit(unit)
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, unit *store.GenerationUnit) error {
	// Writes finish the current phase even under batch cancellation.
	writeCtx := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if lastErr = o.units.Upsert(writeCtx, unit); lastErr == nil {
			return nil
		}
		if attempt < persistAttempts {
			o.sleep(o.opts.Retry.backoff(attempt))
		}
	}
	return lastErr
}

func (o *Orchestrator) emit(unit *store.GenerationUnit) {
	if o.onEvent == nil {
		return
	}
	o.onEvent(ProgressEvent{
		TermID:       unit.TermID,
		ColumnID:     unit.ColumnID,
		Phase:        unit.Phase,
		QualityScore: unit.QualityScore,
		CostUSD:      unit.CostUSD,
		Error:        unit.LastError,
		Timestamp:    unit.UpdatedAt,
	})
}
