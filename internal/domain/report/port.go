package report

import (
	"context"
	"time"
)

// ObjectStore reads and writes whole objects.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Tags(ctx context.Context, bucket, key string) (map[string]string, error)
	SetTags(ctx context.Context, bucket, key string, tags map[string]string) error
}

// LinkSigner issues time-limited download links. Optional.
type LinkSigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// DetectionPage is one page of OCR output.
type DetectionPage struct {
	Lines     []string
	Pages     int
	NextToken string
}

// JobStatus is the state of an asynchronous OCR job.
type JobStatus string

const (
	JobInProgress     JobStatus = "IN_PROGRESS"
	JobSucceeded      JobStatus = "SUCCEEDED"
	JobFailed         JobStatus = "FAILED"
	JobPartialSuccess JobStatus = "PARTIAL_SUCCESS"
)

// JobPage is one poll result of an asynchronous OCR job.
type JobPage struct {
	Status        JobStatus
	StatusMessage string
	DetectionPage
}

// TextDetector is the OCR service. Adapters mark retryable failures with
// MarkTransient and oversize documents with ErrDocumentTooLarge.
type TextDetector interface {
	DetectText(ctx context.Context, document []byte) (DetectionPage, error)
	StartTextDetection(ctx context.Context, bucket, key string) (jobID string, err error)
	GetTextDetection(ctx context.Context, jobID, nextToken string) (JobPage, error)
}

// Mailer delivers rendered notifications.
type Mailer interface {
	Send(ctx context.Context, n Notification) (messageID string, err error)
}
