package ai

import "errors"

var (
	// ErrNotConfigured means neither provider has credentials.
	ErrNotConfigured = errors.New("AI service not configured. Please add ANTHROPIC_API_KEY or OPENAI_API_KEY.")

	// ErrTimeout covers deadline expiry and transport failures. Callers
	// treat it as retryable.
	ErrTimeout = errors.New("AI service timed out")

	// ErrInvalidResponse means the provider answered but the content
	// could not be used.
	ErrInvalidResponse = errors.New("AI returned invalid response format")
)
