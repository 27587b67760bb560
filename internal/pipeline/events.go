package pipeline

import (
	"time"

	"github.com/jonathan/glossary-agent/internal/store"
)

// ProgressEvent is emitted on every phase transition of every unit.
type ProgressEvent struct {
	TermID       string      `json:"term_id"`
	ColumnID     string      `json:"column_id"`
	Phase        store.Phase `json:"phase"`
	QualityScore int         `json:"quality_score,omitempty"`
	CostUSD      float64     `json:"cost_usd"`
	Error        string      `json:"error,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EventFunc receives progress events. The orchestrator is transport-agnostic;
// callers bridge events to channels, SSE streams, or log lines.
type EventFunc func(event ProgressEvent)
