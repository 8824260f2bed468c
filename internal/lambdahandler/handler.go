// Package lambdahandler adapts the pipeline to the Lambda runtime.
package lambdahandler

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/ajy0127/soc2-report-reviewer/internal/application/pipeline"
)

// Pipeline is the orchestrator entry point for raw triggers.
type Pipeline interface {
	HandleEvent(ctx context.Context, raw []byte, runID string) pipeline.Outcome
}

type Handler struct {
	Pipeline Pipeline
}

// Handle never returns an error: every outcome, failures included, is
// reported in the response so the trigger is not retried by the platform.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (pipeline.InvocationResponse, error) {
	var runID string
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		runID = lc.AwsRequestID
	}
	out := h.Pipeline.HandleEvent(ctx, raw, runID)
	return out.Response(), nil
}
