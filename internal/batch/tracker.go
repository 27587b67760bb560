package batch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/store"
)

// subscriberBuffer sizes per-subscriber event channels. A slow consumer
// drops events rather than stalling workers.
const subscriberBuffer = 256

// Tracker aggregates cost and completion across one batch run and fans
// progress events out to subscribers. It performs no store writes; it only
// observes signals emitted by the orchestrator and scheduler.
type Tracker struct {
	mu          sync.Mutex
	run         Run
	subscribers map[int]chan pipeline.ProgressEvent
	nextSub     int
}

// NewTracker creates a tracker for a batch over the given enumerated units.
// Per-tier totals are fixed at creation from the enumerated scope, so
// percentage math never recounts the catalog under concurrency.
func NewTracker(id uuid.UUID, tierTotals map[catalog.Tier]int) *Tracker {
	tiers := make(map[catalog.Tier]TierProgress, len(tierTotals))
	total := 0
	for tier, count := range tierTotals {
		tiers[tier] = TierProgress{Total: count}
		total += count
	}

	return &Tracker{
		run: Run{
			ID:         id,
			Status:     StatusPending,
			TotalUnits: total,
			Tiers:      tiers,
			StartedAt:  time.Now(),
		},
		subscribers: make(map[int]chan pipeline.ProgressEvent),
	}
}

// Start marks the run as executing.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Status = StatusRunning
}

// UnitCompleted records a unit that reached a terminal phase. Only the cost
// incurred during this run is folded into the batch totals: prior is the
// unit's persisted ledger before processing (nil for fresh units), so resumed
// units do not double-count work paid for by earlier runs.
func (t *Tracker) UnitCompleted(unit *store.GenerationUnit, tier catalog.Tier, prior *store.GenerationUnit) {
	tokensIn, tokensOut, cost := unit.TokensIn, unit.TokensOut, unit.CostUSD
	if prior != nil {
		tokensIn -= prior.TokensIn
		tokensOut -= prior.TokensOut
		cost -= prior.CostUSD
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.run.TokensIn += tokensIn
	t.run.TokensOut += tokensOut
	t.run.TotalCost += cost

	switch unit.Phase {
	case store.PhaseFailed:
		t.run.Failed++
	default:
		t.run.Completed++
		progress := t.run.Tiers[tier]
		progress.Completed++
		t.run.Tiers[tier] = progress
	}
}

// UnitFailed records a unit that could not be processed at all (for example,
// its persisted record could not be loaded).
func (t *Tracker) UnitFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run.Failed++
}

// UnitSkipped records a unit that was already final and not re-dispatched.
func (t *Tracker) UnitSkipped(tier catalog.Tier) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.run.Skipped++
	progress := t.run.Tiers[tier]
	progress.Completed++
	t.run.Tiers[tier] = progress
}

// Finish records the terminal status of the whole run.
func (t *Tracker) Finish(status Status, runErr error) {
	t.mu.Lock()
	now := time.Now()
	t.run.Status = status
	t.run.CompletedAt = &now
	if runErr != nil {
		t.run.Error = runErr.Error()
	}
	subs := make([]chan pipeline.ProgressEvent, 0, len(t.subscribers))
	for _, ch := range t.subscribers {
		subs = append(subs, ch)
	}
	t.subscribers = make(map[int]chan pipeline.ProgressEvent)
	t.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Publish forwards a per-unit progress event to all subscribers. Events are
// ordered by completion time, not enumeration order; a full subscriber
// buffer drops the event for that subscriber.
func (t *Tracker) Publish(event pipeline.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a progress event consumer. The returned cancel func
// must be called when the consumer goes away; the channel is closed when the
// run finishes.
func (t *Tracker) Subscribe() (<-chan pipeline.ProgressEvent, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run.Done() {
		ch := make(chan pipeline.ProgressEvent)
		close(ch)
		return ch, func() {}
	}

	id := t.nextSub
	t.nextSub++
	ch := make(chan pipeline.ProgressEvent, subscriberBuffer)
	t.subscribers[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existing, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Snapshot returns a copy of the current aggregate state.
func (t *Tracker) Snapshot() Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	run := t.run
	run.Tiers = make(map[catalog.Tier]TierProgress, len(t.run.Tiers))
	for tier, progress := range t.run.Tiers {
		run.Tiers[tier] = progress
	}
	return run
}
