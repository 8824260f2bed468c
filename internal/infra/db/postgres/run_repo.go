package postgres

import (
	"context"
	"database/sql"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

type RunRepository struct{ db *sql.DB }

func NewRunRepository(db *sql.DB) *RunRepository { return &RunRepository{db: db} }

// Save insert/update Run record
func (r *RunRepository) Save(ctx context.Context, run *runs.Run) error {
	const q = `
INSERT INTO report_runs
(id, bucket, object_key, artifact_bucket, artifact_key, status, stage,
 error_kind, message, extraction_mode, pages, model_attempts,
 quality_rating, started_at, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,
        $8,$9,$10,$11,$12,
        $13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
 artifact_bucket = EXCLUDED.artifact_bucket,
 artifact_key = EXCLUDED.artifact_key,
 status = EXCLUDED.status,
 stage = EXCLUDED.stage,
 error_kind = EXCLUDED.error_kind,
 message = EXCLUDED.message,
 extraction_mode = EXCLUDED.extraction_mode,
 pages = EXCLUDED.pages,
 model_attempts = EXCLUDED.model_attempts,
 quality_rating = EXCLUDED.quality_rating,
 duration_ms = EXCLUDED.duration_ms;`

	_, err := r.db.ExecContext(ctx, q,
		string(run.ID), stringOrDash(run.Bucket), stringOrDash(run.Key),
		run.ArtifactBucket, run.ArtifactKey,
		stringOrDash(string(run.Status)), stringOrDash(run.Stage),
		run.ErrorKind, run.Message, run.ExtractionMode, run.Pages, run.ModelAttempts,
		nullFloat(run.QualityRating), startedOrNow(run.StartedAt), run.DurationMS,
	)
	return err
}

// Latest runs, newest first
func (r *RunRepository) Latest(ctx context.Context, limit int) ([]*runs.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, bucket, object_key, artifact_bucket, artifact_key, status, stage,
       error_kind, message, extraction_mode, pages, model_attempts,
       quality_rating, started_at, duration_ms
FROM report_runs
ORDER BY started_at DESC, id DESC
LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*runs.Run
	for rows.Next() {
		var run runs.Run
		var rating sql.NullFloat64
		if err := rows.Scan(
			&run.ID, &run.Bucket, &run.Key, &run.ArtifactBucket, &run.ArtifactKey, &run.Status, &run.Stage,
			&run.ErrorKind, &run.Message, &run.ExtractionMode, &run.Pages, &run.ModelAttempts,
			&rating, &run.StartedAt, &run.DurationMS,
		); err != nil {
			return nil, err
		}
		run.QualityRating = floatPtr(rating)
		out = append(out, &run)
	}
	return out, rows.Err()
}
