// Package store provides durable state for generation units: one row per
// (term, column) pair tracking pipeline phase, content, score, and cost.
package store

import (
	"context"
	"time"
)

// Phase is a stage in a unit's lifecycle. Transitions are forward-only except
// for bounded retries within a phase; Failed units re-enter Pending only via
// an explicit reset.
type Phase string

// Phase constants, in pipeline order.
const (
	PhasePending   Phase = "pending"
	PhaseGenerated Phase = "generated"
	PhaseEvaluated Phase = "evaluated"
	PhaseImproving Phase = "improving"
	PhaseFinal     Phase = "final"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether a phase ends a unit's processing for this run.
func (p Phase) Terminal() bool {
	return p == PhaseFinal || p == PhaseFailed
}

// Term is a glossary entry being documented. Terms are created by the
// ingestion collaborator and are read-only here.
type Term struct {
	ID   string
	Name string
}

// GenerationUnit is the mutable pipeline state for one (term, column) pair.
// The store owns persisted rows; the orchestrator holds a transient copy and
// writes back after every phase transition so a crash mid-pipeline leaves a
// resumable record.
type GenerationUnit struct {
	TermID   string
	ColumnID string

	Phase   Phase
	Content string

	// QualityScore is 1-10 once evaluated, 0 before.
	QualityScore       int
	EvaluationFeedback string

	// Cost ledger fields are append-only: retries add, nothing subtracts.
	TokensIn  int
	TokensOut int
	CostUSD   float64

	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// UnitStore is the persistence contract for generation units. Upsert must be
// idempotent keyed by (term, column); the scheduler guarantees a unit is
// never dispatched to two workers at once, so last-writer-wins per phase
// transition is safe.
type UnitStore interface {
	// Get returns the persisted unit and whether it exists.
	Get(ctx context.Context, termID, columnID string) (*GenerationUnit, bool, error)
	// Upsert inserts or replaces the unit keyed by (term, column).
	Upsert(ctx context.Context, unit *GenerationUnit) error
	// ListByTerm returns all persisted units for one term.
	ListByTerm(ctx context.Context, termID string) ([]GenerationUnit, error)
	// ResetFailed returns failed units to Pending for a targeted retry pass.
	// The cost ledger is preserved. Returns the number of units reset.
	ResetFailed(ctx context.Context, termID string) (int, error)
}

// TermStore supplies the entity records the scheduler enumerates over.
type TermStore interface {
	// GetTerm returns one term by ID.
	GetTerm(ctx context.Context, id string) (*Term, bool, error)
	// ListTerms returns all terms in stable order.
	ListTerms(ctx context.Context) ([]Term, error)
	// UpsertTerm inserts or updates a term keyed by ID.
	UpsertTerm(ctx context.Context, term Term) error
}

// ResetForRegeneration returns a unit to Pending for forced regeneration,
// clearing pipeline state but never the cost ledger.
func (u *GenerationUnit) ResetForRegeneration() {
	u.Phase = PhasePending
	u.Content = ""
	u.QualityScore = 0
	u.EvaluationFeedback = ""
	u.Attempts = 0
	u.LastError = ""
}
