package batch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStartAndWait(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	m := NewManager(s)

	scope := Scope{TermIDs: []string{"E1"}, ColumnIDs: []string{"intro_definition"}}
	started, err := m.StartBatch(context.Background(), scope, DefaultOptions())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, started.ID)
	assert.Equal(t, 1, started.TotalUnits)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := m.Wait(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 1, final.Completed)

	// Finished runs stay queryable.
	status, err := m.GetBatchStatus(started.ID)
	require.NoError(t, err)
	assert.True(t, status.Done())
}

func TestManagerStartRejectsInvalidOptions(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	m := NewManager(s)

	opts := DefaultOptions()
	opts.BatchSize = 0
	_, err := m.StartBatch(context.Background(), Scope{}, opts)
	assert.Error(t, err)
}

func TestManagerStartRejectsBadScope(t *testing.T) {
	client := &stubClient{score: 9}
	s, _ := newTestScheduler(t, client)
	m := NewManager(s)

	_, err := m.StartBatch(context.Background(), Scope{TermIDs: []string{"E999"}}, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 0, client.callCount(), "enumeration failures abort before dispatch")
}

func TestManagerUnknownBatch(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	m := NewManager(s)
	id := uuid.New()

	_, err := m.GetBatchStatus(id)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	_, err = m.CancelBatch(context.Background(), id)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	_, _, err = m.Subscribe(id)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestManagerCancelBatch(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	m := NewManager(s)

	opts := DefaultOptions()
	opts.BatchSize = 1
	// A long inter-batch delay keeps the run alive until cancel lands.
	opts.InterBatchDelay = time.Minute

	started, err := m.StartBatch(context.Background(), Scope{ColumnIDs: []string{"intro_definition", "intro_analogy"}}, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := m.CancelBatch(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, run.Status)
	assert.Less(t, run.Completed, run.TotalUnits)
}

func TestManagerSubscribeStreamsEvents(t *testing.T) {
	s, _ := newTestScheduler(t, &stubClient{score: 9})
	m := NewManager(s)

	opts := DefaultOptions()
	opts.InterBatchDelay = 50 * time.Millisecond

	started, err := m.StartBatch(context.Background(), Scope{TermIDs: []string{"E1"}, ColumnIDs: []string{"intro_definition"}}, opts)
	require.NoError(t, err)

	events, cancel, err := m.Subscribe(started.ID)
	require.NoError(t, err)
	defer cancel()

	var seen int
	for range events {
		seen++
	}
	// generated, evaluated, final, unless the run outpaced the subscription.
	assert.LessOrEqual(t, seen, 3)

	ctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	final, err := m.Wait(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
}
