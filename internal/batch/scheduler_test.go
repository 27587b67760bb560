package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/llm"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/prompts"
	"github.com/jonathan/glossary-agent/internal/store"
)

// stubClient answers every call by prompt kind instead of call order, so it
// stays deterministic under concurrent workers. Evaluation prompts are the
// only ones that ask for a "score".
type stubClient struct {
	mu    sync.Mutex
	calls int
	score int
}

func (c *stubClient) Generate(_ context.Context, prompt string, _ llm.ModelTier) (*llm.Result, error) {
	c.mu.Lock()
	c.calls++
	score := c.score
	c.mu.Unlock()

	text := "Gradient descent is an iterative optimization method that follows the negative gradient."
	if strings.Contains(prompt, `"score"`) {
		text = fmt.Sprintf(`{"score": %d, "feedback": "clear and accurate"}`, score)
	}
	return &llm.Result{
		Text:  text,
		Model: "gemini-2.5-flash",
		Usage: llm.Usage{TokensIn: 100, TokensOut: 50},
	}, nil
}

func (c *stubClient) Close() error { return nil }

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestScheduler(t *testing.T, client llm.Client) (*Scheduler, *store.Memory) {
	t.Helper()

	reg, err := catalog.LoadDefault()
	require.NoError(t, err)
	promptStore, err := prompts.NewStore()
	require.NoError(t, err)

	mem := store.NewMemory()
	mem.AddTerm(store.Term{ID: "E1", Name: "Gradient Descent"})
	mem.AddTerm(store.Term{ID: "E2", Name: "Attention"})

	return NewScheduler(mem, mem, reg, promptStore, client), mem
}

func runBatch(t *testing.T, s *Scheduler, scope Scope, opts Options) Run {
	t.Helper()

	tasks, err := s.Enumerate(context.Background(), scope, opts.Order)
	require.NoError(t, err)
	tracker := NewTracker(uuid.New(), TierTotals(tasks))
	return s.Execute(context.Background(), tasks, opts, tracker)
}

func TestExecuteProcessesAllUnits(t *testing.T) {
	client := &stubClient{score: 9}
	s, mem := newTestScheduler(t, client)

	scope := Scope{ColumnIDs: []string{"intro_definition", "intro_analogy"}}
	opts := DefaultOptions()
	run := runBatch(t, s, scope, opts)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 4, run.TotalUnits)
	assert.Equal(t, 4, run.Completed)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, 0, run.Skipped)
	// Generation plus evaluation per unit, no improvement at score 9.
	assert.Equal(t, 8, client.callCount())
	assert.Equal(t, 800, run.TokensIn)
	assert.Equal(t, 400, run.TokensOut)
	assert.Greater(t, run.TotalCost, 0.0)
	require.NotNil(t, run.CompletedAt)

	for _, termID := range []string{"E1", "E2"} {
		units, err := mem.ListByTerm(context.Background(), termID)
		require.NoError(t, err)
		require.Len(t, units, 2)
		for _, unit := range units {
			assert.Equal(t, store.PhaseFinal, unit.Phase)
			assert.Equal(t, 9, unit.QualityScore)
		}
	}
}

func TestExecuteSkipsFinalUnits(t *testing.T) {
	client := &stubClient{score: 9}
	s, _ := newTestScheduler(t, client)

	scope := Scope{ColumnIDs: []string{"intro_definition"}}
	opts := DefaultOptions()

	first := runBatch(t, s, scope, opts)
	require.Equal(t, 2, first.Completed)
	callsAfterFirst := client.callCount()

	second := runBatch(t, s, scope, opts)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Completed)
	assert.Equal(t, 0.0, second.TotalCost)
	assert.Equal(t, callsAfterFirst, client.callCount(), "skipped units must not invoke the model")

	// Skipped units still count toward tier progress.
	tier := second.Tiers[catalog.TierEssential]
	assert.Equal(t, tier.Total, tier.Completed)
}

func TestExecuteSkipsOnlyFinalUnits(t *testing.T) {
	client := &stubClient{score: 9}
	s, mem := newTestScheduler(t, client)

	// Pre-finalize one of the four units.
	require.NoError(t, mem.Upsert(context.Background(), &store.GenerationUnit{
		TermID:   "E1",
		ColumnID: "intro_definition",
		Phase:    store.PhaseFinal,
		Content:  "Existing content that already passed review.",
	}))

	scope := Scope{ColumnIDs: []string{"intro_definition", "intro_analogy"}}
	run := runBatch(t, s, scope, DefaultOptions())

	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 3, run.Completed)
	assert.Equal(t, 6, client.callCount())
}

func TestExecuteForceRegenerates(t *testing.T) {
	client := &stubClient{score: 9}
	s, mem := newTestScheduler(t, client)

	scope := Scope{TermIDs: []string{"E1"}, ColumnIDs: []string{"intro_definition"}}
	opts := DefaultOptions()
	runBatch(t, s, scope, opts)

	unit, found, err := mem.Get(context.Background(), "E1", "intro_definition")
	require.NoError(t, err)
	require.True(t, found)
	priorCost := unit.CostUSD
	require.Greater(t, priorCost, 0.0)

	opts.Force = true
	opts.SkipExisting = false
	run := runBatch(t, s, scope, opts)

	assert.Equal(t, 1, run.Completed)
	assert.Equal(t, 0, run.Skipped)

	regenerated, found, err := mem.Get(context.Background(), "E1", "intro_definition")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.PhaseFinal, regenerated.Phase)
	// The unit ledger keeps accruing across regenerations, but the batch
	// only reports what this run spent.
	assert.Greater(t, regenerated.CostUSD, priorCost)
	assert.InDelta(t, priorCost, run.TotalCost, 1e-9)
}

func TestExecuteAggregatesUnitFailures(t *testing.T) {
	// Score of 0 makes every evaluation response fail schema validation,
	// which fails the unit without retries.
	client := &stubClient{score: 0}
	s, _ := newTestScheduler(t, client)

	scope := Scope{TermIDs: []string{"E1"}, ColumnIDs: []string{"intro_definition", "intro_analogy"}}
	run := runBatch(t, s, scope, DefaultOptions())

	assert.Equal(t, StatusCompleted, run.Status, "unit failures do not fail the batch")
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, 0, run.Completed)
	// Failed calls still consumed tokens for the generation and the
	// malformed evaluation.
	assert.Equal(t, 400, run.TokensIn)
}

// unreachableStore fails every operation with a persistence error and counts
// how many lookups the scheduler attempted before giving up.
type unreachableStore struct {
	mu   sync.Mutex
	gets int
}

func (u *unreachableStore) fail(op string) error {
	return &store.PersistenceError{Op: op, Err: errors.New("connection refused")}
}

func (u *unreachableStore) Get(context.Context, string, string) (*store.GenerationUnit, bool, error) {
	u.mu.Lock()
	u.gets++
	u.mu.Unlock()
	return nil, false, u.fail("get unit")
}

func (u *unreachableStore) Upsert(context.Context, *store.GenerationUnit) error {
	return u.fail("upsert unit")
}

func (u *unreachableStore) ListByTerm(context.Context, string) ([]store.GenerationUnit, error) {
	return nil, u.fail("list units")
}

func (u *unreachableStore) ResetFailed(context.Context, string) (int, error) {
	return 0, u.fail("reset failed units")
}

func (u *unreachableStore) getCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gets
}

func TestExecuteFailsWhenStoreUnreachable(t *testing.T) {
	client := &stubClient{score: 9}
	reg, err := catalog.LoadDefault()
	require.NoError(t, err)
	promptStore, err := prompts.NewStore()
	require.NoError(t, err)

	terms := store.NewMemory()
	terms.AddTerm(store.Term{ID: "E1", Name: "Gradient Descent"})
	terms.AddTerm(store.Term{ID: "E2", Name: "Attention"})

	dead := &unreachableStore{}
	s := NewScheduler(dead, terms, reg, promptStore, client)

	scope := Scope{Section: "Introduction"}
	opts := DefaultOptions()
	opts.BatchSize = 2

	tasks, err := s.Enumerate(context.Background(), scope, opts.Order)
	require.NoError(t, err)
	require.Len(t, tasks, 10)

	tracker := NewTracker(uuid.New(), TierTotals(tasks))
	run := s.Execute(context.Background(), tasks, opts, tracker)

	assert.Equal(t, StatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	assert.Contains(t, run.Error, "connection refused")
	// Only the first wave is dispatched once the store proves unreachable.
	assert.LessOrEqual(t, dead.getCount(), opts.BatchSize)
	assert.Equal(t, 0, run.Completed)
	assert.Equal(t, 0, run.Failed, "unprocessed units stay resumable rather than counting as failed")
	assert.Equal(t, 0, client.callCount())
	require.NotNil(t, run.CompletedAt)
}

func TestExecuteCancellation(t *testing.T) {
	client := &stubClient{score: 9}
	s, mem := newTestScheduler(t, client)

	scope := Scope{ColumnIDs: []string{"intro_definition", "intro_analogy", "intro_why_it_matters"}}
	opts := DefaultOptions()
	opts.BatchSize = 2

	tasks, err := s.Enumerate(context.Background(), scope, opts.Order)
	require.NoError(t, err)
	require.Len(t, tasks, 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracker := NewTracker(uuid.New(), TierTotals(tasks))
	run := s.Execute(ctx, tasks, opts, tracker)

	assert.Equal(t, StatusCancelled, run.Status)
	assert.Equal(t, 0, client.callCount(), "no unit starts under a cancelled context")
	assert.Equal(t, 0, run.Completed)

	units, err := mem.ListByTerm(context.Background(), "E1")
	require.NoError(t, err)
	assert.Empty(t, units, "nothing persisted for units that never started")
}

func TestEnumerateOrdering(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	scope := Scope{ColumnIDs: []string{"intro_definition", "intro_analogy"}}

	topdown, err := s.Enumerate(context.Background(), scope, OrderTopDown)
	require.NoError(t, err)
	bottomup, err := s.Enumerate(context.Background(), scope, OrderBottomUp)
	require.NoError(t, err)

	require.Len(t, topdown, 4)
	require.Len(t, bottomup, 4)
	for i := range topdown {
		assert.Equal(t, topdown[i], bottomup[len(bottomup)-1-i])
	}
	assert.Equal(t, "E1", topdown[0].Term.ID)
	assert.Equal(t, "E2", bottomup[0].Term.ID)
}

func TestEnumerateScopeErrors(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})

	tests := []struct {
		name    string
		scope   Scope
		wantErr string
	}{
		{
			name:    "unknown term",
			scope:   Scope{TermIDs: []string{"E999"}},
			wantErr: `unknown term "E999"`,
		},
		{
			name:    "unknown column",
			scope:   Scope{ColumnIDs: []string{"no_such_column"}},
			wantErr: "no_such_column",
		},
		{
			name:    "empty intersection",
			scope:   Scope{ColumnIDs: []string{"intro_definition"}, Section: "Evaluation"},
			wantErr: "no columns match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Enumerate(context.Background(), tt.scope, OrderTopDown)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnumerateTierFilter(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})

	tasks, err := s.Enumerate(context.Background(), Scope{TermIDs: []string{"E1"}, Tier: catalog.TierEssential}, OrderTopDown)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
	for _, task := range tasks {
		assert.Equal(t, catalog.TierEssential, task.Column.Tier)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}, wantErr: false},
		{name: "zero batch size", mutate: func(o *Options) { o.BatchSize = 0 }, wantErr: true},
		{name: "oversized batch", mutate: func(o *Options) { o.BatchSize = 500 }, wantErr: true},
		{name: "threshold out of range", mutate: func(o *Options) { o.QualityThreshold = 11 }, wantErr: true},
		{name: "bad mode", mutate: func(o *Options) { o.Mode = "refine" }, wantErr: true},
		{name: "bad order", mutate: func(o *Options) { o.Order = "sideways" }, wantErr: true},
		{name: "force with skip", mutate: func(o *Options) { o.Force = true }, wantErr: true},
		{name: "force without skip", mutate: func(o *Options) { o.Force = true; o.SkipExisting = false }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrackerDeltaAccounting(t *testing.T) {
	tracker := NewTracker(uuid.New(), map[catalog.Tier]int{catalog.TierEssential: 1})
	tracker.Start()

	prior := &store.GenerationUnit{TokensIn: 500, TokensOut: 250, CostUSD: 0.02}
	unit := &store.GenerationUnit{
		Phase:     store.PhaseFinal,
		TokensIn:  700,
		TokensOut: 350,
		CostUSD:   0.03,
	}
	tracker.UnitCompleted(unit, catalog.TierEssential, prior)

	run := tracker.Snapshot()
	assert.Equal(t, 200, run.TokensIn)
	assert.Equal(t, 100, run.TokensOut)
	assert.InDelta(t, 0.01, run.TotalCost, 1e-9)
	assert.Equal(t, 1, run.Completed)
}

func TestTrackerSubscribe(t *testing.T) {
	tracker := NewTracker(uuid.New(), map[catalog.Tier]int{catalog.TierEssential: 1})
	tracker.Start()

	events, cancel := tracker.Subscribe()
	defer cancel()

	tracker.Publish(pipeline.ProgressEvent{TermID: "E1", ColumnID: "intro_definition", Phase: store.PhaseGenerated})
	got := <-events
	assert.Equal(t, "E1", got.TermID)
	assert.Equal(t, store.PhaseGenerated, got.Phase)

	tracker.Finish(StatusCompleted, nil)
	_, open := <-events
	assert.False(t, open, "channel closes when the run finishes")

	late, lateCancel := tracker.Subscribe()
	defer lateCancel()
	_, open = <-late
	assert.False(t, open, "subscribing to a finished run yields a closed channel")
}

func TestTrackerFinishWithError(t *testing.T) {
	tracker := NewTracker(uuid.New(), nil)
	tracker.Start()
	tracker.Finish(StatusFailed, errors.New("store unavailable"))

	run := tracker.Snapshot()
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "store unavailable", run.Error)
	assert.True(t, run.Done())
}
