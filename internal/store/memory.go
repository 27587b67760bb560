package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory UnitStore and TermStore. It backs tests and dry
// runs; the concurrency contract matches the Postgres store (safe concurrent
// upsert keyed by term and column).
type Memory struct {
	mu    sync.RWMutex
	units map[unitKey]GenerationUnit
	terms map[string]Term
}

type unitKey struct {
	termID   string
	columnID string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		units: make(map[unitKey]GenerationUnit),
		terms: make(map[string]Term),
	}
}

// AddTerm registers a term without a context. Test setup helper.
func (m *Memory) AddTerm(term Term) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms[term.ID] = term
}

// UpsertTerm inserts or updates a term keyed by ID.
func (m *Memory) UpsertTerm(_ context.Context, term Term) error {
	m.AddTerm(term)
	return nil
}

// Get returns the persisted unit for a (term, column) pair.
func (m *Memory) Get(_ context.Context, termID, columnID string) (*GenerationUnit, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unit, ok := m.units[unitKey{termID, columnID}]
	if !ok {
		return nil, false, nil
	}
	copied := unit
	return &copied, true, nil
}

// Upsert inserts or replaces the unit keyed by (term, column).
func (m *Memory) Upsert(_ context.Context, unit *GenerationUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *unit
	stored.UpdatedAt = time.Now()
	m.units[unitKey{unit.TermID, unit.ColumnID}] = stored
	return nil
}

// ListByTerm returns all persisted units for one term ordered by column ID.
func (m *Memory) ListByTerm(_ context.Context, termID string) ([]GenerationUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var units []GenerationUnit
	for key, unit := range m.units {
		if key.termID == termID {
			units = append(units, unit)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ColumnID < units[j].ColumnID })
	return units, nil
}

// ResetFailed returns failed units to Pending, preserving the cost ledger.
func (m *Memory) ResetFailed(_ context.Context, termID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key, unit := range m.units {
		if unit.Phase != PhaseFailed {
			continue
		}
		if termID != "" && key.termID != termID {
			continue
		}
		unit.Phase = PhasePending
		unit.Attempts = 0
		unit.LastError = ""
		unit.UpdatedAt = time.Now()
		m.units[key] = unit
		count++
	}
	return count, nil
}

// GetTerm returns one term by ID.
func (m *Memory) GetTerm(_ context.Context, id string) (*Term, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	term, ok := m.terms[id]
	if !ok {
		return nil, false, nil
	}
	copied := term
	return &copied, true, nil
}

// ListTerms returns all terms ordered by ID.
func (m *Memory) ListTerms(_ context.Context) ([]Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := make([]Term, 0, len(m.terms))
	for _, term := range m.terms {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].ID < terms[j].ID })
	return terms, nil
}
