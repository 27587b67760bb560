package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/llm"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/prompts"
	"github.com/jonathan/glossary-agent/internal/quality"
	"github.com/jonathan/glossary-agent/internal/store"
)

// Scope selects which units a batch covers. An empty TermIDs means all
// terms; column selection is an explicit ID list and/or tier and section
// filters.
type Scope struct {
	TermIDs   []string
	ColumnIDs []string
	Tier      catalog.Tier
	Section   string
}

// Options configures one batch run. Validated before any work is dispatched.
type Options struct {
	Mode             pipeline.Mode `validate:"required,oneof=generate evaluate full"`
	BatchSize        int           `validate:"gte=1,lte=128"`
	QualityThreshold int           `validate:"gte=1,lte=10"`
	MaxRetries       int           `validate:"gte=1,lte=10"`
	SkipExisting     bool
	Force            bool
	InterBatchDelay  time.Duration `validate:"gte=0"`
	Order            Order         `validate:"oneof=topdown bottomup"`
}

// DefaultOptions returns production batch defaults.
func DefaultOptions() Options {
	return Options{
		Mode:             pipeline.ModeFullPipeline,
		BatchSize:        10,
		QualityThreshold: quality.DefaultThreshold,
		MaxRetries:       3,
		SkipExisting:     true,
		Order:            OrderTopDown,
	}
}

var validate = validator.New()

// Validate checks option ranges and cross-field consistency.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid batch options: %w", err)
	}
	if o.Force && o.SkipExisting {
		return fmt.Errorf("invalid batch options: force and skip-existing are mutually exclusive")
	}
	return nil
}

// Task is one unit of enumerated work.
type Task struct {
	Term   store.Term
	Column catalog.ColumnDefinition
}

// TierTotals counts enumerated tasks per tier, fixing the denominators for
// per-tier progress.
func TierTotals(tasks []Task) map[catalog.Tier]int {
	totals := make(map[catalog.Tier]int, 4)
	for _, task := range tasks {
		totals[task.Column.Tier]++
	}
	return totals
}

// Scheduler enumerates and executes batch runs.
type Scheduler struct {
	units    store.UnitStore
	terms    store.TermStore
	registry *catalog.Registry
	prompts  *prompts.Store
	client   llm.Client
}

// NewScheduler wires a scheduler over the given collaborators.
func NewScheduler(units store.UnitStore, terms store.TermStore, registry *catalog.Registry, promptStore *prompts.Store, client llm.Client) *Scheduler {
	return &Scheduler{
		units:    units,
		terms:    terms,
		registry: registry,
		prompts:  promptStore,
		client:   client,
	}
}

// Enumerate resolves a scope into the concrete task list, in catalog order
// per term. Configuration problems (unknown term or column, missing prompt
// bundle) surface here, before any unit is dispatched.
func (s *Scheduler) Enumerate(ctx context.Context, scope Scope, order Order) ([]Task, error) {
	if err := s.prompts.ValidateCatalog(s.registry); err != nil {
		return nil, err
	}

	terms, err := s.resolveTerms(ctx, scope.TermIDs)
	if err != nil {
		return nil, err
	}
	columns, err := s.resolveColumns(scope)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(terms)*len(columns))
	for _, term := range terms {
		for _, col := range columns {
			tasks = append(tasks, Task{Term: term, Column: col})
		}
	}

	if order == OrderBottomUp {
		for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
			tasks[i], tasks[j] = tasks[j], tasks[i]
		}
	}
	return tasks, nil
}

func (s *Scheduler) resolveTerms(ctx context.Context, ids []string) ([]store.Term, error) {
	if len(ids) == 0 {
		terms, err := s.terms.ListTerms(ctx)
		if err != nil {
			return nil, err
		}
		if len(terms) == 0 {
			return nil, fmt.Errorf("no terms available")
		}
		return terms, nil
	}

	terms := make([]store.Term, 0, len(ids))
	for _, id := range ids {
		term, found, err := s.terms.GetTerm(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("unknown term %q", id)
		}
		terms = append(terms, *term)
	}
	return terms, nil
}

func (s *Scheduler) resolveColumns(scope Scope) ([]catalog.ColumnDefinition, error) {
	if len(scope.ColumnIDs) > 0 {
		columns := make([]catalog.ColumnDefinition, 0, len(scope.ColumnIDs))
		for _, id := range scope.ColumnIDs {
			col, err := s.registry.GetColumn(id)
			if err != nil {
				return nil, err
			}
			if scope.Tier != "" && col.Tier != scope.Tier {
				continue
			}
			if scope.Section != "" && col.Section != scope.Section {
				continue
			}
			columns = append(columns, col)
		}
		if len(columns) == 0 {
			return nil, fmt.Errorf("no columns match the requested scope")
		}
		return columns, nil
	}

	columns := s.registry.ListColumns(catalog.Filter{Tier: scope.Tier, Section: scope.Section})
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns match the requested scope")
	}
	return columns, nil
}

// Execute processes tasks in waves of BatchSize with an optional inter-batch
// delay. Per-unit failures never fail the batch; cancellation stops dispatch
// of new units while in-flight units finish their current phase. A store
// that proves unreachable is batch-fatal: the current wave drains, no further
// waves are dispatched, and the run finishes failed. The final aggregate is
// always returned, even if every unit failed.
func (s *Scheduler) Execute(ctx context.Context, tasks []Task, opts Options, tracker *Tracker) Run {
	tracker.Start()

	retry := pipeline.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	orch := pipeline.New(s.units, s.client, s.registry, s.prompts, pipeline.Options{
		Mode:             opts.Mode,
		QualityThreshold: opts.QualityThreshold,
		Retry:            retry,
		FallbackTier:     llm.TierLite,
	}, tracker.Publish)

	cancelled := false
	var fatal error
	for start := 0; start < len(tasks) && !cancelled; start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		wave := tasks[start:end]

		// Wait drains the whole wave before reporting the first fatal
		// error, so in-flight units finish their current phase.
		var g errgroup.Group
		for _, task := range wave {
			task := task
			g.Go(func() error {
				return s.processTask(ctx, orch, task, opts, tracker)
			})
		}
		if err := g.Wait(); err != nil {
			fatal = err
			break
		}

		if ctx.Err() != nil {
			cancelled = true
			break
		}

		if opts.InterBatchDelay > 0 && end < len(tasks) {
			select {
			case <-time.After(opts.InterBatchDelay):
			case <-ctx.Done():
				cancelled = true
			}
		}
	}

	switch {
	case fatal != nil:
		tracker.Finish(StatusFailed, fatal)
	case cancelled:
		tracker.Finish(StatusCancelled, nil)
	default:
		tracker.Finish(StatusCompleted, nil)
	}
	return tracker.Snapshot()
}

// processTask applies the skip-existing and forced-regeneration policies,
// then runs the orchestrator for one unit. A store persistence failure is
// returned as batch-fatal; the unit stays unprocessed and resumable rather
// than counting against the run.
func (s *Scheduler) processTask(ctx context.Context, orch *pipeline.Orchestrator, task Task, opts Options, tracker *Tracker) error {
	if ctx.Err() != nil {
		return nil
	}

	prior, found, err := s.units.Get(ctx, task.Term.ID, task.Column.ID)
	if err != nil {
		if isBatchFatal(err) {
			return err
		}
		tracker.UnitFailed()
		return nil
	}

	if found && prior.Phase == store.PhaseFinal {
		switch {
		case opts.Force:
			reset := *prior
			reset.ResetForRegeneration()
			if err := s.units.Upsert(ctx, &reset); err != nil {
				if isBatchFatal(err) {
					return err
				}
				tracker.UnitFailed()
				return nil
			}
			prior = &reset
		case opts.SkipExisting:
			tracker.UnitSkipped(task.Column.Tier)
			return nil
		}
	}

	unit, err := orch.ProcessUnit(ctx, task.Term, task.Column.ID)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled at a phase boundary: the unit is resumable and is
			// neither completed nor failed for this run.
			return nil
		}
		if isBatchFatal(err) {
			return err
		}
		tracker.UnitFailed()
		return nil
	}

	if !found {
		prior = nil
	}
	tracker.UnitCompleted(unit, task.Column.Tier, prior)
	return nil
}

// isBatchFatal reports whether an error means the store itself is
// unreachable, so dispatching further units would only churn.
func isBatchFatal(err error) bool {
	var persistErr *store.PersistenceError
	return errors.As(err, &persistErr)
}
