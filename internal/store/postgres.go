package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool and implements UnitStore and
// TermStore.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// EnsureSchema creates the tables this store needs if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS terms (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generation_units (
			term_id             TEXT NOT NULL,
			column_id           TEXT NOT NULL,
			phase               TEXT NOT NULL,
			content             TEXT NOT NULL DEFAULT '',
			quality_score       INT NOT NULL DEFAULT 0,
			evaluation_feedback TEXT NOT NULL DEFAULT '',
			tokens_in           INT NOT NULL DEFAULT 0,
			tokens_out          INT NOT NULL DEFAULT 0,
			cost_usd            DOUBLE PRECISION NOT NULL DEFAULT 0,
			attempts            INT NOT NULL DEFAULT 0,
			last_error          TEXT NOT NULL DEFAULT '',
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (term_id, column_id)
		);
		CREATE INDEX IF NOT EXISTS generation_units_phase_idx ON generation_units (phase);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const unitColumns = `term_id, column_id, phase, content, quality_score,
	evaluation_feedback, tokens_in, tokens_out, cost_usd, attempts,
	last_error, updated_at`

// Get returns the persisted unit for a (term, column) pair.
func (db *DB) Get(ctx context.Context, termID, columnID string) (*GenerationUnit, bool, error) {
	var unit GenerationUnit
	err := db.pool.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM generation_units WHERE term_id = $1 AND column_id = $2`,
		termID, columnID,
	).Scan(&unit.TermID, &unit.ColumnID, &unit.Phase, &unit.Content,
		&unit.QualityScore, &unit.EvaluationFeedback, &unit.TokensIn,
		&unit.TokensOut, &unit.CostUSD, &unit.Attempts, &unit.LastError,
		&unit.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Op: "get", Err: err}
	}
	return &unit, true, nil
}

// Upsert inserts or replaces the unit keyed by (term, column).
func (db *DB) Upsert(ctx context.Context, unit *GenerationUnit) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO generation_units (term_id, column_id, phase, content,
			quality_score, evaluation_feedback, tokens_in, tokens_out,
			cost_usd, attempts, last_error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		 ON CONFLICT (term_id, column_id) DO UPDATE SET
			phase = $3, content = $4, quality_score = $5,
			evaluation_feedback = $6, tokens_in = $7, tokens_out = $8,
			cost_usd = $9, attempts = $10, last_error = $11, updated_at = NOW()`,
		unit.TermID, unit.ColumnID, unit.Phase, unit.Content,
		unit.QualityScore, unit.EvaluationFeedback, unit.TokensIn,
		unit.TokensOut, unit.CostUSD, unit.Attempts, unit.LastError,
	)
	if err != nil {
		return &PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

// ListByTerm returns all persisted units for one term, in column order of
// insertion.
func (db *DB) ListByTerm(ctx context.Context, termID string) ([]GenerationUnit, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM generation_units WHERE term_id = $1 ORDER BY column_id`,
		termID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var units []GenerationUnit
	for rows.Next() {
		var unit GenerationUnit
		if err := rows.Scan(&unit.TermID, &unit.ColumnID, &unit.Phase,
			&unit.Content, &unit.QualityScore, &unit.EvaluationFeedback,
			&unit.TokensIn, &unit.TokensOut, &unit.CostUSD, &unit.Attempts,
			&unit.LastError, &unit.UpdatedAt); err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return units, nil
}

// ResetFailed returns failed units to Pending, preserving the cost ledger.
// An empty termID resets failed units for all terms.
func (db *DB) ResetFailed(ctx context.Context, termID string) (int, error) {
	query := `UPDATE generation_units
		SET phase = $1, attempts = 0, last_error = '', updated_at = NOW()
		WHERE phase = $2`
	args := []interface{}{PhasePending, PhaseFailed}
	if termID != "" {
		query += ` AND term_id = $3`
		args = append(args, termID)
	}

	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, &PersistenceError{Op: "reset", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

// UpsertTerm inserts or updates a term keyed by ID.
func (db *DB) UpsertTerm(ctx context.Context, term Term) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO terms (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		term.ID, term.Name,
	)
	if err != nil {
		return &PersistenceError{Op: "upsert", Err: err}
	}
	return nil
}

// GetTerm returns one term by ID.
func (db *DB) GetTerm(ctx context.Context, id string) (*Term, bool, error) {
	var term Term
	err := db.pool.QueryRow(ctx,
		`SELECT id, name FROM terms WHERE id = $1`, id,
	).Scan(&term.ID, &term.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Op: "get", Err: err}
	}
	return &term, true, nil
}

// ListTerms returns all terms ordered by ID.
func (db *DB) ListTerms(ctx context.Context) ([]Term, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name FROM terms ORDER BY id`)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		var term Term
		if err := rows.Scan(&term.ID, &term.Name); err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return terms, nil
}
