package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	schemaLockKey    = int64(2026101901)
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Web and worker may start together.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_runs (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	pages INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL,
	document_number TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	supplier_tax_id TEXT NOT NULL DEFAULT '',
	customer_tax_id TEXT NOT NULL DEFAULT '',
	line_items INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_runs_created_at ON processing_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_processing_runs_session ON processing_runs(session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_processing_runs_state ON processing_runs(state);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) Save(ctx context.Context, run *domain.ProcessingRun) error {
	if run == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save run", errors.New("run is nil"))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO processing_runs (
	id, session_id, filename, size_bytes, pages, state, document_number, document_type,
	supplier_tax_id, customer_tax_id, line_items, error_message, created_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO NOTHING
`,
		run.ID, run.SessionID, run.Filename, run.SizeBytes, run.Pages, string(run.State),
		run.DocumentNumber, run.DocumentType, run.SupplierTaxID, run.CustomerTaxID,
		run.LineItems, run.Error, run.CreatedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing run: %w", err)
	}
	return nil
}

const selectRun = `
SELECT id, session_id, filename, size_bytes, pages, state, document_number, document_type,
	supplier_tax_id, customer_tax_id, line_items, error_message, created_at, completed_at
FROM processing_runs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.ProcessingRun, error) {
	var run domain.ProcessingRun
	var state string
	err := row.Scan(
		&run.ID, &run.SessionID, &run.Filename, &run.SizeBytes, &run.Pages, &state,
		&run.DocumentNumber, &run.DocumentType, &run.SupplierTaxID, &run.CustomerTaxID,
		&run.LineItems, &run.Error, &run.CreatedAt, &run.CompletedAt,
	)
	run.State = domain.ActionState(state)
	return run, err
}

// GetByID returns a run of the given session; runs of other sessions are not found.
func (r *RunRepository) GetByID(ctx context.Context, sessionID, id string) (*domain.ProcessingRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectRun+`WHERE id = $1 AND session_id = $2`, id, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get run", fmt.Errorf("run %s", id))
		}
		return nil, fmt.Errorf("scan processing run: %w", err)
	}
	return &run, nil
}

func (r *RunRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.ProcessingRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx, selectRun+`WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list processing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ProcessingRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processing run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing runs: %w", err)
	}
	return runs, nil
}
