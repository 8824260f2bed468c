// Package ai selects the model provider adapter.
package ai

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	domai "github.com/ajy0127/soc2-report-reviewer/internal/domain/ai"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/ai/bedrock"
	"github.com/ajy0127/soc2-report-reviewer/internal/infra/ai/openai"
)

// Provider names accepted by MODEL_PROVIDER.
type Provider string

const (
	ProviderBedrock Provider = "bedrock"
	ProviderOpenAI  Provider = "openai"
)

type Options struct {
	BedrockModelID string
	OpenAIModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
}

// NewClient creates the model client for provider. awsCfg is only used by bedrock.
func NewClient(provider Provider, awsCfg aws.Config, opts Options) (domai.Client, error) {
	switch Provider(strings.ToLower(string(provider))) {
	case ProviderBedrock, "":
		return bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg), opts.BedrockModelID), nil
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openai.NewClient(opts.OpenAIAPIKey, opts.OpenAIModel, opts.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", provider)
	}
}
