package runs

import "time"

// RunID identifier type
type RunID string

// Status of a finished run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusSkipped        Status = "skipped"
	StatusFailed         Status = "failed"
)

// Run is the audit record of one pipeline invocation.
type Run struct {
	ID             RunID     `json:"id"`
	Bucket         string    `json:"bucket"`
	Key            string    `json:"key"`
	ArtifactBucket string    `json:"artifact_bucket,omitempty"`
	ArtifactKey    string    `json:"artifact_key,omitempty"`
	Status         Status    `json:"status"`
	Stage          string    `json:"stage"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Message        string    `json:"message,omitempty"`
	ExtractionMode string    `json:"extraction_mode,omitempty"`
	Pages          int       `json:"pages"`
	ModelAttempts  int       `json:"model_attempts"`
	QualityRating  *float64  `json:"quality_rating,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	DurationMS     int64     `json:"duration_ms"`
}
