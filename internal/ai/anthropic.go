package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicProvider calls the Messages API.
type AnthropicProvider struct {
	providerInfo
	client anthropic.Client
}

// NewAnthropicProvider builds a provider on the official SDK. SDK retries
// are off; the adapter owns fallback and timeouts.
func NewAnthropicProvider(url, apiKey, model string, stubMode bool) *AnthropicProvider {
	return &AnthropicProvider{
		providerInfo: providerInfo{name: "anthropic", model: model, stubMode: stubMode},
		client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL(url)),
			option.WithHTTPClient(httpClient()),
			option.WithMaxRetries(0),
		),
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.stubMode {
		return stubCompletion(ctx, req)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: p.name, Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", p.transportError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: anthropic returned empty response", ErrInvalidResponse)
	}
	return text, nil
}
