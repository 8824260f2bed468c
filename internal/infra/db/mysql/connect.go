package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// started_at is scanned into time.Time
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id              VARCHAR(64)  NOT NULL PRIMARY KEY,
  bucket          VARCHAR(255) NOT NULL,
  object_key      VARCHAR(1024) NOT NULL,
  artifact_bucket VARCHAR(255) NOT NULL DEFAULT '',
  artifact_key    VARCHAR(1024) NOT NULL DEFAULT '',
  status          VARCHAR(32)  NOT NULL,
  stage           VARCHAR(32)  NOT NULL,
  error_kind      VARCHAR(64)  NOT NULL DEFAULT '',
  message         TEXT,
  extraction_mode VARCHAR(16)  NOT NULL DEFAULT '',
  pages           INT          NOT NULL DEFAULT 0,
  model_attempts  INT          NOT NULL DEFAULT 0,
  quality_rating  DOUBLE       NULL,
  started_at      DATETIME(3)  NOT NULL,
  duration_ms     BIGINT       NOT NULL DEFAULT 0,
  KEY idx_report_runs_started (started_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Migrate creates the run ledger table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
