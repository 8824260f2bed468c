// Package bedrock implements ai.Client on Amazon Bedrock InvokeModel.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/awserr"
)

const (
	DefaultModelID   = "anthropic.claude-3-sonnet-20240229-v1:0"
	anthropicVersion = "bedrock-2023-05-31"
)

// API is the subset of *bedrockruntime.Client the client uses.
type API interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Client struct {
	api     API
	ModelID string
}

func NewClient(api API, modelID string) *Client {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Client{api: api, ModelID: modelID}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float32   `json:"temperature"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type textRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type textResponse struct {
	Completion string `json:"completion"`
	Generation string `json:"generation"`
	Outputs    []struct {
		Text string `json:"text"`
	} `json:"outputs"`
}

// isAnthropic covers both plain model IDs and cross-region inference profiles.
func (c *Client) isAnthropic() bool {
	return strings.HasPrefix(c.ModelID, "anthropic.") || strings.Contains(c.ModelID, ".anthropic.")
}

func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	var (
		body []byte
		err  error
	)
	if c.isAnthropic() {
		body, err = json.Marshal(anthropicRequest{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        req.MaxTokens,
			Temperature:      req.Temperature,
			System:           req.System,
			Messages:         []message{{Role: "user", Content: req.Prompt}},
		})
	} else {
		prompt := req.Prompt
		if req.System != "" {
			prompt = req.System + "\n\n" + prompt
		}
		body, err = json.Marshal(textRequest{Prompt: prompt, MaxTokens: req.MaxTokens, Temperature: req.Temperature})
	}
	if err != nil {
		return "", fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		if awserr.Code(err) == "ServiceQuotaExceededException" {
			return "", fmt.Errorf("bedrock invoke %s: %w: %v", c.ModelID, ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("bedrock invoke %s: %w", c.ModelID, awserr.Classify(err))
	}

	text, err := c.decode(out.Body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

func (c *Client) decode(raw []byte) (string, error) {
	if c.isAnthropic() {
		var resp anthropicResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", fmt.Errorf("decode bedrock response: %w", err)
		}
		var b strings.Builder
		for _, part := range resp.Content {
			if part.Type == "" || part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		return b.String(), nil
	}
	var resp textResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode bedrock response: %w", err)
	}
	switch {
	case resp.Completion != "":
		return resp.Completion, nil
	case resp.Generation != "":
		return resp.Generation, nil
	case len(resp.Outputs) > 0:
		return resp.Outputs[0].Text, nil
	}
	return "", nil
}
