package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/glossary-agent/internal/pipeline"
)

// ErrBatchNotFound is returned for lookups of unknown batch IDs.
var ErrBatchNotFound = fmt.Errorf("batch not found")

type managedRun struct {
	tracker *Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager runs batches in the background and exposes the control surface:
// start, cancel, status, and event subscription. One manager serves one
// process; completed runs stay queryable until the process exits.
type Manager struct {
	scheduler *Scheduler

	mu   sync.Mutex
	runs map[uuid.UUID]*managedRun
}

// NewManager creates a manager over the given scheduler.
func NewManager(scheduler *Scheduler) *Manager {
	return &Manager{
		scheduler: scheduler,
		runs:      make(map[uuid.UUID]*managedRun),
	}
}

// StartBatch validates options, enumerates the scope, and launches the run
// asynchronously. It returns the initial snapshot with the assigned batch ID;
// enumeration or validation failures abort before any unit is touched.
func (m *Manager) StartBatch(ctx context.Context, scope Scope, opts Options) (Run, error) {
	if err := opts.Validate(); err != nil {
		return Run{}, err
	}

	tasks, err := m.scheduler.Enumerate(ctx, scope, opts.Order)
	if err != nil {
		return Run{}, err
	}

	id := uuid.New()
	tracker := NewTracker(id, TierTotals(tasks))

	runCtx, cancel := context.WithCancel(context.Background())
	managed := &managedRun{
		tracker: tracker,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[id] = managed
	m.mu.Unlock()

	go func() {
		defer close(managed.done)
		defer cancel()
		m.scheduler.Execute(runCtx, tasks, opts, tracker)
	}()

	return tracker.Snapshot(), nil
}

// CancelBatch requests cancellation of a running batch. In-flight units
// finish their current phase; the call returns once the run has drained.
func (m *Manager) CancelBatch(ctx context.Context, id uuid.UUID) (Run, error) {
	m.mu.Lock()
	managed, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return Run{}, ErrBatchNotFound
	}

	managed.cancel()
	select {
	case <-managed.done:
	case <-ctx.Done():
		return managed.tracker.Snapshot(), ctx.Err()
	}
	return managed.tracker.Snapshot(), nil
}

// GetBatchStatus returns the current snapshot for a batch.
func (m *Manager) GetBatchStatus(id uuid.UUID) (Run, error) {
	m.mu.Lock()
	managed, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return Run{}, ErrBatchNotFound
	}
	return managed.tracker.Snapshot(), nil
}

// Subscribe attaches to a batch's progress event stream. The returned channel
// closes when the run finishes; the cancel func detaches early.
func (m *Manager) Subscribe(id uuid.UUID) (<-chan pipeline.ProgressEvent, func(), error) {
	m.mu.Lock()
	managed, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil, ErrBatchNotFound
	}
	events, cancel := managed.tracker.Subscribe()
	return events, cancel, nil
}

// Wait blocks until the given batch run has drained. Used by the CLI, which
// starts a single batch and waits for it.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (Run, error) {
	m.mu.Lock()
	managed, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return Run{}, ErrBatchNotFound
	}
	select {
	case <-managed.done:
		return managed.tracker.Snapshot(), nil
	case <-ctx.Done():
		return managed.tracker.Snapshot(), ctx.Err()
	}
}
