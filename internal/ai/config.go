package ai

import (
	"log/slog"

	"github.com/jimdaga/accomplish/internal/config"
)

// ProvidersFromConfig returns the configured providers in priority order:
// Anthropic, then OpenAI. With stub mode on and no keys, a stubbed
// Anthropic provider stands in so the service works offline.
func ProvidersFromConfig(cfg *config.Config) (primary, fallback Provider) {
	var ps []Provider
	if cfg.AnthropicAPIKey != "" {
		ps = append(ps, NewAnthropicProvider(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AIStubMode))
	}
	if cfg.OpenAIAPIKey != "" {
		ps = append(ps, NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AIStubMode))
	}
	if len(ps) == 0 && cfg.AIStubMode {
		slog.Warn("AI stub mode enabled, responses are canned")
		ps = append(ps, NewAnthropicProvider(cfg.AnthropicBaseURL, "", cfg.AnthropicModel, true))
	}

	switch len(ps) {
	case 0:
		slog.Warn("No AI provider configured. Set ANTHROPIC_API_KEY or OPENAI_API_KEY to enable enhancement and reports.")
		return nil, nil
	case 1:
		return ps[0], nil
	default:
		return ps[0], ps[1]
	}
}
