// Package ai talks to the LLM providers behind a primary/fallback adapter.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// requestTimeout caps a single provider call when the caller sets none.
const requestTimeout = 60 * time.Second

// Request is one completion call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
	// JSON asks the provider for a single JSON object when it supports it.
	JSON bool
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// Unwrap marks throttling and server-side failures as retryable.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests || e.Code >= 500 {
		return ErrTimeout
	}
	return nil
}

// providerInfo holds what both SDK-backed providers share.
type providerInfo struct {
	name     string
	model    string
	stubMode bool
}

func (p *providerInfo) Name() string  { return p.name }
func (p *providerInfo) Model() string { return p.model }

// transportError wraps a failure that never produced an API status.
func (p *providerInfo) transportError(err error) error {
	return fmt.Errorf("%w: %s request failed: %v", ErrTimeout, p.name, err)
}

// baseURL normalises a configured endpoint for the SDK clients, which
// resolve request paths relative to it.
func baseURL(raw string) string {
	return strings.TrimRight(raw, "/") + "/"
}

func httpClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
