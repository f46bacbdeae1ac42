package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider calls the Chat Completions API.
type OpenAIProvider struct {
	providerInfo
	client openai.Client
}

// NewOpenAIProvider builds a provider on the official SDK. url includes the
// API version prefix, e.g. https://api.openai.com/v1.
func NewOpenAIProvider(url, apiKey, model string, stubMode bool) *OpenAIProvider {
	return &OpenAIProvider{
		providerInfo: providerInfo{name: "openai", model: model, stubMode: stubMode},
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL(url)),
			option.WithHTTPClient(httpClient()),
			option.WithMaxRetries(0),
		),
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if p.stubMode {
		return stubCompletion(ctx, req)
	}

	params := openai.ChatCompletionNewParams{Model: openai.ChatModel(p.model)}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	params.Messages = append(params.Messages, openai.UserMessage(req.Prompt))
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: p.name, Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", p.transportError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: openai returned empty response", ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
