package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, okBody, &seen)
	c := NewClient("test-key", "", srv.URL+"/v1")

	got, err := c.Complete(context.Background(), ai.CompletionRequest{System: "sys", Prompt: "user", MaxTokens: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Complete() = %q", got)
	}
	if seen["model"] != DefaultModel || seen["max_tokens"] != float64(1000) {
		t.Errorf("request = %v", seen)
	}
	if msgs, _ := seen["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", seen["messages"])
	}
}

func TestComplete_ReasoningModelUsesCompletionTokens(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, okBody, &seen)
	c := NewClient("k", "o3-mini", srv.URL+"/v1")

	if _, err := c.Complete(context.Background(), ai.CompletionRequest{Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := seen["max_tokens"]; ok {
		t.Errorf("max_tokens must not be sent to reasoning models: %v", seen)
	}
	if seen["max_completion_tokens"] != float64(maxTokens) {
		t.Errorf("max_completion_tokens = %v", seen["max_completion_tokens"])
	}
}

func TestComplete_ErrorMapping(t *testing.T) {
	errBody := `{"error":{"message":"boom","type":"server_error"}}`

	srv := newServer(t, http.StatusTooManyRequests, errBody, nil)
	_, err := NewClient("k", "", srv.URL+"/v1").Complete(context.Background(), ai.CompletionRequest{})
	if !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("429 not mapped to quota error: %v", err)
	}

	srv = newServer(t, http.StatusBadGateway, errBody, nil)
	_, err = NewClient("k", "", srv.URL+"/v1").Complete(context.Background(), ai.CompletionRequest{})
	if !report.IsTransient(err) {
		t.Errorf("5xx should be transient: %v", err)
	}

	srv = newServer(t, http.StatusBadRequest, errBody, nil)
	_, err = NewClient("k", "", srv.URL+"/v1").Complete(context.Background(), ai.CompletionRequest{})
	if err == nil || report.IsTransient(err) || errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("400 should be permanent: %v", err)
	}
}

func TestComplete_Empty(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[]}`, nil)
	_, err := NewClient("k", "", srv.URL+"/v1").Complete(context.Background(), ai.CompletionRequest{})
	if !errors.Is(err, ai.ErrEmptyCompletion) {
		t.Errorf("err = %v", err)
	}
}
