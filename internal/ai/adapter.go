package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
)

// enhancementSchema is the contract for the structured enrichment path.
const enhancementSchema = `{
  "type": "object",
  "required": ["title", "bullets", "category"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 60},
    "bullets": {
      "type": "array",
      "minItems": 2,
      "maxItems": 3,
      "items": {"type": "string", "minLength": 1}
    },
    "category": {"type": "string", "minLength": 1, "maxLength": 50}
  }
}`

// Enhancement is a validated structured summary of one entry.
type Enhancement struct {
	Title    string   `json:"title"`
	Bullets  []string `json:"bullets"`
	Category string   `json:"category"`
	Provider string   `json:"-"`
	Model    string   `json:"-"`
}

// Generation is free-form output plus where it came from.
type Generation struct {
	Text     string
	Provider string
	Model    string
}

// EnhancePrompt configures the structured path.
type EnhancePrompt struct {
	System    string
	MaxTokens int
}

// Adapter tries the primary provider, then the fallback. Either may be nil.
type Adapter struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
	enhance  EnhancePrompt
	schema   *jsonschema.Schema
}

func NewAdapter(primary, fallback Provider, timeout time.Duration, enhance EnhancePrompt) (*Adapter, error) {
	schema, err := jsonschema.NewCompiler().Compile([]byte(enhancementSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile enhancement schema: %w", err)
	}
	if enhance.MaxTokens <= 0 {
		enhance.MaxTokens = 500
	}
	return &Adapter{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		enhance:  enhance,
		schema:   schema,
	}, nil
}

// Configured reports whether at least one provider is available.
func (a *Adapter) Configured() bool {
	return len(a.providers()) > 0
}

func (a *Adapter) providers() []Provider {
	var ps []Provider
	if a.primary != nil {
		ps = append(ps, a.primary)
	}
	if a.fallback != nil {
		ps = append(ps, a.fallback)
	}
	return ps
}

// EnhanceEntry produces a structured summary of text.
func (a *Adapter) EnhanceEntry(ctx context.Context, text string) (*Enhancement, error) {
	req := Request{System: a.enhance.System, Prompt: text, MaxTokens: a.enhance.MaxTokens, JSON: true}
	enh, p, err := complete(ctx, a, req, a.parseEnhancement)
	if err != nil {
		return nil, err
	}
	enh.Provider, enh.Model = p.Name(), p.Model()
	return enh, nil
}

// Generate produces free-form text for prompt.
func (a *Adapter) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	req := Request{Prompt: prompt, MaxTokens: maxTokens}
	text, p, err := complete(ctx, a, req, func(s string) (string, error) {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: empty response", ErrInvalidResponse)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return &Generation{Text: text, Provider: p.Name(), Model: p.Model()}, nil
}

// complete runs req against each provider in order until one returns
// usable content. The last failure is returned.
func complete[T any](ctx context.Context, a *Adapter, req Request, parse func(string) (T, error)) (T, Provider, error) {
	var zero T
	providers := a.providers()
	if len(providers) == 0 {
		return zero, nil, ErrNotConfigured
	}

	var lastErr error
	for _, p := range providers {
		out, err := a.call(ctx, p, req)
		if err == nil {
			v, perr := parse(out)
			if perr == nil {
				return v, p, nil
			}
			err = perr
		}
		slog.Warn("AI provider failed", "provider", p.Name(), "model", p.Model(), "error", err)
		lastErr = err
	}
	return zero, nil, lastErr
}

func (a *Adapter) call(ctx context.Context, p Provider, req Request) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	out, err := p.Complete(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrTimeout) && (isTimeout(err) || ctx.Err() != nil) {
			return "", fmt.Errorf("%w: %s: %v", ErrTimeout, p.Name(), err)
		}
		return "", err
	}
	return out, nil
}

func (a *Adapter) parseEnhancement(text string) (*Enhancement, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	result := a.schema.Validate(instance)
	if !result.IsValid() {
		msgs := make([]string, 0, len(result.Errors))
		for field, evalErr := range result.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		sort.Strings(msgs)
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(msgs, "; "))
	}

	var enh Enhancement
	if err := json.Unmarshal(raw, &enh); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	for i, b := range enh.Bullets {
		if strings.TrimSpace(b) == "" {
			return nil, fmt.Errorf("%w: bullet %d is blank", ErrInvalidResponse, i)
		}
	}
	return &enh, nil
}

// ExtractJSON returns text if it is valid JSON, else the span from the
// first '{' to the last '}' if that is valid JSON.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}
	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("%w: invalid JSON in response", ErrInvalidResponse)
	}
	return candidate, nil
}
