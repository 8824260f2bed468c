// Package awserr classifies AWS SDK errors for the pipeline's retry rules.
package awserr

import (
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

var transientCodes = map[string]bool{
	"ThrottlingException":                    true,
	"Throttling":                             true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"LimitExceededException":                 true,
	"InternalServerError":                    true,
	"InternalServerException":                true,
	"InternalError":                          true,
	"ServiceUnavailable":                     true,
	"ServiceUnavailableException":            true,
	"ModelTimeoutException":                  true,
	"ModelNotReadyException":                 true,
	"SlowDown":                               true,
	"RequestTimeout":                         true,
}

// Code returns the service error code, or "" for non-API errors.
func Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsTransient reports throttling, 5xx and timeout failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if transientCodes[Code(err)] {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return false
}

// Classify marks transient errors with report.MarkTransient.
func Classify(err error) error {
	if IsTransient(err) {
		return report.MarkTransient(err)
	}
	return err
}
