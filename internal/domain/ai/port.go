package ai

import "context"

// CompletionRequest is a single-turn prompt sent to a text model.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Client is implemented by every model provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
