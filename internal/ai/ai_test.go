package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jimdaga/accomplish/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	out   string
	err   error
	delay time.Duration
	calls int
	last  Request
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }
func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.calls++
	f.last = req
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.out, f.err
}

const validJSON = `{"title":"Shipped search","bullets":["Built the index","Cut latency"],"category":"Development"}`

func newAdapter(t *testing.T, primary, fallback Provider) *Adapter {
	t.Helper()
	a, err := NewAdapter(primary, fallback, time.Second, EnhancePrompt{System: "summarize"})
	require.NoError(t, err)
	return a
}

func TestEnhanceEntry_Primary(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", out: validJSON}
	fallback := &fakeProvider{name: "openai", out: validJSON}

	enh, err := newAdapter(t, primary, fallback).EnhanceEntry(context.Background(), "did things")
	require.NoError(t, err)
	assert.Equal(t, "Shipped search", enh.Title)
	assert.Equal(t, []string{"Built the index", "Cut latency"}, enh.Bullets)
	assert.Equal(t, "anthropic", enh.Provider)
	assert.Equal(t, "anthropic-model", enh.Model)
	assert.Equal(t, 0, fallback.calls)
	assert.True(t, primary.last.JSON)
	assert.Equal(t, "summarize", primary.last.System)
	assert.Equal(t, 500, primary.last.MaxTokens)
}

func TestEnhanceEntry_ExtractsEmbeddedJSON(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", out: "Sure! Here you go:\n" + validJSON + "\nHope that helps."}

	enh, err := newAdapter(t, primary, nil).EnhanceEntry(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Development", enh.Category)
}

func TestEnhanceEntry_FallsBackOnUnusableContent(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", out: `{"title":"","bullets":["one"],"category":"x"}`}
	fallback := &fakeProvider{name: "openai", out: validJSON}

	enh, err := newAdapter(t, primary, fallback).EnhanceEntry(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "openai", enh.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestEnhanceEntry_FallsBackOnError(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: &StatusError{Provider: "anthropic", Code: 529}}
	fallback := &fakeProvider{name: "openai", out: validJSON}

	enh, err := newAdapter(t, primary, fallback).EnhanceEntry(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "openai", enh.Provider)
}

func TestEnhanceEntry_PropagatesWithoutFallback(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", out: "no json here"}

	_, err := newAdapter(t, primary, nil).EnhanceEntry(context.Background(), "x")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEnhanceEntry_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"too many bullets": `{"title":"t","bullets":["a","b","c","d"],"category":"c"}`,
		"title too long":   `{"title":"` + strings.Repeat("x", 61) + `","bullets":["a","b"],"category":"c"}`,
		"blank bullet":     `{"title":"t","bullets":["a"," "],"category":"c"}`,
		"missing category": `{"title":"t","bullets":["a","b"]}`,
		"not an object":    `["a","b"]`,
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newAdapter(t, &fakeProvider{name: "p", out: out}, nil).EnhanceEntry(context.Background(), "x")
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestAdapter_NotConfigured(t *testing.T) {
	a := newAdapter(t, nil, nil)
	assert.False(t, a.Configured())

	_, err := a.EnhanceEntry(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = a.Generate(context.Background(), "p", 100)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAdapter_TimeoutIsDistinct(t *testing.T) {
	slow := &fakeProvider{name: "anthropic", out: validJSON, delay: time.Second}
	a, err := NewAdapter(slow, nil, 20*time.Millisecond, EnhancePrompt{})
	require.NoError(t, err)

	_, err = a.EnhanceEntry(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerate_UsesFallbackAndReportsProvider(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: errors.New("boom")}
	fallback := &fakeProvider{name: "openai", out: "- a\n- b"}

	gen, err := newAdapter(t, primary, fallback).Generate(context.Background(), "prompt", 2000)
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b", gen.Text)
	assert.Equal(t, "openai", gen.Provider)
	assert.Equal(t, 2000, fallback.last.MaxTokens)
	assert.False(t, fallback.last.JSON)
}

func TestExtractJSON(t *testing.T) {
	_, err := ExtractJSON("} backwards {")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ExtractJSON("{ not json }")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	out, err := ExtractJSON("```json\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func TestAnthropicProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var body struct {
			Model     string      `json:"model"`
			MaxTokens int         `json:"max_tokens"`
			System    []textBlock `json:"system"`
			Messages  []struct {
				Role    string      `json:"role"`
				Content []textBlock `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body.Model)
		assert.Equal(t, 500, body.MaxTokens)
		require.Len(t, body.System, 1)
		assert.Equal(t, "sys", body.System[0].Text)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		require.Len(t, body.Messages[0].Content, 1)
		assert.Equal(t, "hello", body.Messages[0].Content[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"Hel"},{"type":"tool_use","id":"t1","name":"x","input":{}},{"type":"text","text":"lo "}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider(srv.URL, "key", "claude-test", false)
	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hello", MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
}

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "sys", body.Messages[0].Content)
		assert.Equal(t, "hi", body.Messages[1].Content)
		require.NotNil(t, body.ResponseFormat)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "key", "gpt-test", false)
	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestProvider_StatusErrors(t *testing.T) {
	status := http.StatusServiceUnavailable
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "key", "gpt-test", false)
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), calls.Load(), "SDK retries stay off")

	status = http.StatusUnauthorized
	_, err = p.Complete(context.Background(), Request{Prompt: "hi"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "openai", se.Provider)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestAnthropicProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicProvider(srv.URL, "key", "claude-test", false).Complete(context.Background(), Request{Prompt: "hi"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 529, se.Code)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestProvider_TransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewAnthropicProvider(url, "key", "claude-test", false).Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestProvider_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(srv.URL+"/v1", "key", "m", false).Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestStubMode(t *testing.T) {
	p := NewAnthropicProvider("http://unused.invalid", "", "claude", true)

	out, err := p.Complete(context.Background(), Request{JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, stubEnhancement, out)

	out, err = p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Contains(t, out, "## Key Accomplishments")
}

func TestProvidersFromConfig(t *testing.T) {
	p, f := ProvidersFromConfig(&config.Config{})
	assert.Nil(t, p)
	assert.Nil(t, f)

	p, f = ProvidersFromConfig(&config.Config{OpenAIAPIKey: "o"})
	require.NotNil(t, p)
	assert.Equal(t, "openai", p.Name())
	assert.Nil(t, f)

	p, f = ProvidersFromConfig(&config.Config{AnthropicAPIKey: "a", OpenAIAPIKey: "o"})
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "openai", f.Name())

	p, _ = ProvidersFromConfig(&config.Config{AIStubMode: true})
	require.NotNil(t, p)
	assert.Equal(t, "anthropic", p.Name())
}
