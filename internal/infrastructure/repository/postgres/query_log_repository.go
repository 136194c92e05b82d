package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

const schemaLockID = int64(2026101801)

// QueryLogRepository stores one row per retrieval call in retrieval_logs.
type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS retrieval_logs (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	query TEXT NOT NULL,
	entities JSONB NOT NULL DEFAULT '{}'::jsonb,
	filter JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	backends JSONB NOT NULL DEFAULT '{}'::jsonb,
	passages JSONB NOT NULL DEFAULT '[]'::jsonb,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_logs_created_at ON retrieval_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_retrieval_logs_status ON retrieval_logs(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) Record(ctx context.Context, entry domain.QueryLog) error {
	entitiesJSON, err := json.Marshal(entry.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	filterJSON, err := json.Marshal(entry.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	backendsJSON, err := json.Marshal(entry.Backends)
	if err != nil {
		return fmt.Errorf("marshal backends: %w", err)
	}
	passages := entry.Passages
	if passages == nil {
		passages = []domain.PassageRef{}
	}
	passagesJSON, err := json.Marshal(passages)
	if err != nil {
		return fmt.Errorf("marshal passages: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO retrieval_logs (
	id, request_id, query, entities, filter, status, backends, passages, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`,
		entry.ID, entry.RequestID, entry.Query, entitiesJSON, filterJSON, string(entry.Status),
		backendsJSON, passagesJSON, entry.DurationMs, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert retrieval log: %w", err)
	}
	return nil
}
