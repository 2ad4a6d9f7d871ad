package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

var runColumns = []string{
	"id", "session_id", "filename", "size_bytes", "pages", "state", "document_number", "document_type",
	"supplier_tax_id", "customer_tax_id", "line_items", "error_message", "created_at", "completed_at",
}

func newRepoWithMock(t *testing.T) (*RunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewRunRepository(db), mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS processing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveInsertsRun(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.ProcessingRun{
		ID: "run-1", SessionID: "s-1", Filename: "ddt.pdf", SizeBytes: 512, Pages: 1,
		State: domain.StateSuccess, DocumentNumber: "123", DocumentType: "DDT",
		SupplierTaxID: "IT123", CustomerTaxID: "IT456", LineItems: 1,
		CreatedAt: now, CompletedAt: now.Add(time.Second),
	}

	mock.ExpectExec("INSERT INTO processing_runs").
		WithArgs("run-1", "s-1", "ddt.pdf", int64(512), 1, "success", "123", "DDT", "IT123", "IT456", 1, "", now, now.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), run); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, session_id, filename").
		WithArgs("missing", "s-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "s-1", "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentClampsLimitAndScans(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "s-1", "b.pdf", int64(10), 2, "auth_failed", "", "", "", "", 0, "authentication failed", now, now).
		AddRow("run-1", "s-1", "a.pdf", int64(20), 1, "success", "123", "DDT", "IT1", "IT2", 3, "", now, now)

	mock.ExpectQuery("WHERE session_id = \\$1 ORDER BY created_at DESC LIMIT").
		WithArgs("s-1", maxListLimit).
		WillReturnRows(rows)

	runs, err := repo.ListRecent(context.Background(), "s-1", 10000)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].State != domain.StateAuthFailed || runs[1].DocumentNumber != "123" || runs[1].LineItems != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDIsScopedToSession(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("WHERE id = \\$1 AND session_id = \\$2").
		WithArgs("run-1", "other-session").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "other-session", "run-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a run of another session, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
