package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
)

const claudeMaxTokens = 2048

// claudeProvider completes prompts through the Anthropic API.
type claudeProvider struct {
	client       anthropic.Client
	defaultModel string
	logger       arbor.ILogger
}

func newClaudeProvider(config *common.LLMConfig, logger arbor.ILogger) (*claudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set llm.api_key or ANTHROPIC_API_KEY)")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().Str("model", config.Model).Msg("Claude provider initialized")

	return &claudeProvider{
		client:       client,
		defaultModel: config.Model,
		logger:       logger,
	}, nil
}

func (p *claudeProvider) name() string { return "claude" }

func (p *claudeProvider) complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return sb.String(), nil
}
