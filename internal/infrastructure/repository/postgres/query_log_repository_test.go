package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*QueryLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &QueryLogRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS retrieval_logs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRollsBackOnDDLFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInsertsJSONColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	entities := domain.EmptyQueryEntities()
	entities.Countries = []domain.Country{domain.CountryKenya}
	entry := domain.QueryLog{
		ID:         "log-1",
		RequestID:  "req-1",
		Query:      "stunting in Kenya",
		Entities:   entities,
		Filter:     domain.FilterFromEntities(entities),
		Status:     domain.RetrievalStatusOK,
		Backends:   domain.BackendReport{Vector: domain.BackendOK, Lexical: domain.BackendOK, Rerank: domain.BackendSkipped},
		Passages:   []domain.PassageRef{{DocumentID: "ke-2", ChunkIndex: 1, Score: 0.03}},
		DurationMs: 12.5,
		CreatedAt:  time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO retrieval_logs").
		WithArgs(
			"log-1", "req-1", "stunting in Kenya",
			[]byte(`{"countries":["Kenya"],"phases":[],"survey_types":[],"years":[]}`),
			[]byte(`{"country":"Kenya"}`),
			"ok",
			[]byte(`{"vector":"ok","lexical":"ok","rerank":"skipped"}`),
			[]byte(`[{"doc_id":"ke-2","chunk_index":1,"score":0.03}]`),
			12.5,
			entry.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordWrapsInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO retrieval_logs").WillReturnError(errors.New("connection reset"))
	err := repo.Record(context.Background(), domain.QueryLog{ID: "x", Entities: domain.EmptyQueryEntities()})
	if err == nil {
		t.Fatalf("expected error")
	}
}
