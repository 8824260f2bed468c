package report

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindRetrieval          Kind = "RetrievalError"
	KindExtraction         Kind = "ExtractionError"
	KindExtractionTimeout  Kind = "ExtractionTimeoutError"
	KindAnalysisService    Kind = "AnalysisServiceError"
	KindAnalysisValidation Kind = "AnalysisValidationError"
	KindPersistence        Kind = "PersistenceError"
	KindNotification       Kind = "NotificationError"
)

// Stage names a pipeline state.
type Stage string

const (
	StageValidating Stage = "Validating"
	StageRetrieving Stage = "Retrieving"
	StageExtracting Stage = "Extracting"
	StageAnalyzing  Stage = "Analyzing"
	StagePersisting Stage = "Persisting"
	StageNotifying  Stage = "Notifying"
	StageDone       Stage = "Done"
	StageFailed     Stage = "Failed"
	StageSkipped    Stage = "Skipped"
)

// Error is the typed failure every stage returns.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a stage error.
func NewError(kind Kind, stage Stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ErrTransient marks failures worth retrying (throttling, 5xx, timeouts).
var ErrTransient = errors.New("transient service error")

type transientError struct{ err error }

func (t *transientError) Error() string        { return t.err.Error() }
func (t *transientError) Unwrap() error        { return t.err }
func (t *transientError) Is(target error) bool { return target == ErrTransient }

// MarkTransient wraps err so IsTransient reports true. Nil stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable by an adapter.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ErrDocumentTooLarge is returned by TextDetector.DetectText when the
// document must go through the asynchronous path.
var ErrDocumentTooLarge = errors.New("document too large for synchronous detection")
