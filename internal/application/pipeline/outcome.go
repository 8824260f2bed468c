package pipeline

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/runs"
)

// Outcome is the explicit result of one pipeline run.
type Outcome struct {
	RunID          string
	Bucket         string
	Key            string
	Status         runs.Status
	Stage          report.Stage
	Kind           report.Kind
	Message        string
	ArtifactBucket string
	ArtifactKey    string
	ArtifactURL    string
	Mode           report.ExtractionMode
	Pages          int
	ModelAttempts  int
	QualityRating  *float64
	StartedAt      time.Time
	Duration       time.Duration
	// Timestamp is the RFC 3339 UTC completion time, also used as the tag value.
	Timestamp string
}

func (o Outcome) Request() report.AnalysisRequest {
	return report.AnalysisRequest{Bucket: o.Bucket, Key: o.Key}
}

// StatusCode is 500 for failed runs and 200 otherwise; skipped and
// partially successful runs are not failures of the invocation.
func (o Outcome) StatusCode() int {
	if o.Status == runs.StatusFailed {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// ResponseBody is the JSON document returned to the invoker.
type ResponseBody struct {
	Status    runs.Status `json:"status"`
	RunID     string      `json:"run_id"`
	Message   string      `json:"message,omitempty"`
	Report    string      `json:"report,omitempty"`
	Analysis  string      `json:"analysis,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// InvocationResponse is the {"statusCode","body"} envelope Lambda callers expect.
type InvocationResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func (o Outcome) Body() ResponseBody {
	b := ResponseBody{
		Status:    o.Status,
		RunID:     o.RunID,
		Report:    o.Key,
		Analysis:  o.ArtifactKey,
		Stage:     string(o.Stage),
		Timestamp: o.Timestamp,
	}
	switch o.Status {
	case runs.StatusSuccess:
		b.Message = "Successfully processed SOC 2 report"
	case runs.StatusPartialSuccess:
		b.Message = "Analysis stored, notification not delivered"
		b.ErrorKind, b.Error = string(o.Kind), o.Message
	case runs.StatusSkipped:
		b.Message = "Event skipped"
		b.ErrorKind, b.Error = string(o.Kind), o.Message
	default:
		b.ErrorKind, b.Error = string(o.Kind), o.Message
	}
	return b
}

// Response encodes the outcome for the invoking platform.
func (o Outcome) Response() InvocationResponse {
	body, err := json.Marshal(o.Body())
	if err != nil {
		body = []byte(`{"status":"failed","error":"encode response"}`)
	}
	return InvocationResponse{StatusCode: o.StatusCode(), Body: string(body)}
}

// Run converts the outcome into its ledger row.
func (o Outcome) Run() *runs.Run {
	return &runs.Run{
		ID:             runs.RunID(o.RunID),
		Bucket:         o.Bucket,
		Key:            o.Key,
		ArtifactBucket: o.ArtifactBucket,
		ArtifactKey:    o.ArtifactKey,
		Status:         o.Status,
		Stage:          string(o.Stage),
		ErrorKind:      string(o.Kind),
		Message:        o.Message,
		ExtractionMode: string(o.Mode),
		Pages:          o.Pages,
		ModelAttempts:  o.ModelAttempts,
		QualityRating:  o.QualityRating,
		StartedAt:      o.StartedAt,
		DurationMS:     o.Duration.Milliseconds(),
	}
}
