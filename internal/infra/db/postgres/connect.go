package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS report_runs (
  id              TEXT PRIMARY KEY,
  bucket          TEXT NOT NULL,
  object_key      TEXT NOT NULL,
  artifact_bucket TEXT NOT NULL DEFAULT '',
  artifact_key    TEXT NOT NULL DEFAULT '',
  status          TEXT NOT NULL,
  stage           TEXT NOT NULL,
  error_kind      TEXT NOT NULL DEFAULT '',
  message         TEXT NOT NULL DEFAULT '',
  extraction_mode TEXT NOT NULL DEFAULT '',
  pages           INTEGER NOT NULL DEFAULT 0,
  model_attempts  INTEGER NOT NULL DEFAULT 0,
  quality_rating  DOUBLE PRECISION NULL,
  started_at      TIMESTAMPTZ NOT NULL,
  duration_ms     BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_report_runs_started ON report_runs (started_at DESC);`

// Migrate creates the run ledger table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
