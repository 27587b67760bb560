// Package batch schedules generation work across many (term, column) units:
// it enumerates a requested scope, skips already-final units, dispatches the
// rest to a bounded worker pool, and aggregates cost and progress.
package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/glossary-agent/internal/catalog"
)

// Status describes a batch run's lifecycle.
type Status string

// Status constants, in lifecycle order.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Order selects enumeration direction over the term×column matrix.
type Order string

// Order constants. Bottom-up lets a second operator work the matrix from the
// other end without colliding with a top-down pass.
const (
	OrderTopDown  Order = "topdown"
	OrderBottomUp Order = "bottomup"
)

// TierProgress is per-tier completion within one batch run.
type TierProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Run is the aggregate view of one batch: unit counts by outcome, cost, and
// per-tier completion. Runs are ephemeral; they live for the duration of a
// batch and are queried through the manager.
type Run struct {
	ID     uuid.UUID `json:"id"`
	Status Status    `json:"status"`

	TotalUnits int `json:"total_units"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`

	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	TotalCost float64 `json:"total_cost_usd"`

	Tiers map[catalog.Tier]TierProgress `json:"tiers"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is set when the batch itself (not individual units) failed.
	Error string `json:"error,omitempty"`
}

// Done reports whether the run has reached a terminal status.
func (r *Run) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled || r.Status == StatusFailed
}
