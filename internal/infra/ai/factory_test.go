package ai

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/ajy0127/soc2-report-reviewer/internal/infra/ai/bedrock"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/ai/openai"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("bedrock", aws.Config{Region: "us-east-1"}, Options{BedrockModelID: "anthropic.claude-v2"})
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := c.(*bedrock.Client); !ok || b.ModelID != "anthropic.claude-v2" {
		t.Errorf("bedrock client = %#v", c)
	}

	c, err = NewClient("OpenAI", aws.Config{}, Options{OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	if o, ok := c.(*openai.Client); !ok || o.Model != openai.DefaultModel {
		t.Errorf("openai client = %#v", c)
	}

	if _, err := NewClient("openai", aws.Config{}, Options{}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := NewClient("vertex", aws.Config{}, Options{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
