package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vidsmith/internal/common"
	"github.com/ternarybob/vidsmith/internal/httpclient"
)

// httpProvider completes prompts through a generic OpenAI-style chat endpoint.
type httpProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
	logger       arbor.ILogger
}

func newHTTPProvider(config *common.LLMConfig, timeout *http.Client, logger arbor.ILogger) (*httpProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("llm.base_url is required for the http provider")
	}
	return &httpProvider{
		client:       timeout,
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
		defaultModel: config.Model,
		logger:       logger,
	}, nil
}

func (p *httpProvider) name() string { return "http" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *httpProvider) complete(ctx context.Context, prompt, model string) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	body := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if _, err := httpclient.PostJSON(ctx, p.client, p.baseURL+"/v1/chat/completions", headers, &body, &resp); err != nil {
		return "", fmt.Errorf("chat endpoint call failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("chat endpoint error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
