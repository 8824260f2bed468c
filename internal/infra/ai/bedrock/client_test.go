package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

type fakeAPI struct {
	in   *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (f *fakeAPI) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestComplete_Anthropic(t *testing.T) {
	api := &fakeAPI{body: `{"content":[{"type":"text","text":"{\"ok\":true}"}],"stop_reason":"end_turn"}`}
	c := NewClient(api, "")

	got, err := c.Complete(context.Background(), ai.CompletionRequest{System: "sys", Prompt: "analyze", MaxTokens: 4096, Temperature: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Complete() = %q", got)
	}
	if aws.ToString(api.in.ModelId) != DefaultModelID {
		t.Errorf("ModelId = %q", aws.ToString(api.in.ModelId))
	}

	var sent map[string]any
	if err := json.Unmarshal(api.in.Body, &sent); err != nil {
		t.Fatal(err)
	}
	if sent["anthropic_version"] != "bedrock-2023-05-31" || sent["max_tokens"] != float64(4096) || sent["system"] != "sys" {
		t.Errorf("request body = %v", sent)
	}
	if temp, _ := sent["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Errorf("temperature = %v", sent["temperature"])
	}
}

func TestComplete_OtherModelFamily(t *testing.T) {
	api := &fakeAPI{body: `{"generation":"hello"}`}
	got, err := NewClient(api, "meta.llama3-70b-instruct-v1:0").Complete(context.Background(), ai.CompletionRequest{Prompt: "p"})
	if err != nil || got != "hello" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
}

func TestComplete_Errors(t *testing.T) {
	c := NewClient(&fakeAPI{err: &smithy.GenericAPIError{Code: "ThrottlingException"}}, "")
	if _, err := c.Complete(context.Background(), ai.CompletionRequest{}); !report.IsTransient(err) {
		t.Errorf("throttling should be transient: %v", err)
	}

	c = NewClient(&fakeAPI{err: &smithy.GenericAPIError{Code: "ServiceQuotaExceededException"}}, "")
	if _, err := c.Complete(context.Background(), ai.CompletionRequest{}); !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("quota error not mapped: %v", err)
	}

	c = NewClient(&fakeAPI{err: &smithy.GenericAPIError{Code: "ValidationException"}}, "")
	if _, err := c.Complete(context.Background(), ai.CompletionRequest{}); err == nil || report.IsTransient(err) {
		t.Errorf("validation error must be permanent: %v", err)
	}

	c = NewClient(&fakeAPI{body: `{"content":[]}`}, "")
	if _, err := c.Complete(context.Background(), ai.CompletionRequest{}); !errors.Is(err, ai.ErrEmptyCompletion) {
		t.Errorf("empty completion not detected: %v", err)
	}
}
