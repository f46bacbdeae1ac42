// Package apierr maps failures to stable HTTP statuses and error codes.
package apierr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/accomplish/internal/ai"
	"github.com/jimdaga/accomplish/internal/tracking"
)

// Machine-readable error codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

const genericMessage = "An unexpected error occurred"

// Sentinel errors returned by stores.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Error is an error with an HTTP status and a stable code.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	// Extra fields are merged into the response body.
	Extra map[string]any
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithExtra returns a copy of e with an additional top-level response field.
func (e *Error) WithExtra(key string, value any) *Error {
	cp := *e
	cp.Extra = make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		cp.Extra[k] = v
	}
	cp.Extra[key] = value
	return &cp
}

func NotFound(resource string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Unauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Authentication required"}
}

func Forbidden() *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "Access denied"}
}

func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

// Validation is a 400 carrying per-field or structured details.
func Validation(message string, details map[string]any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

func TooManyRequests() *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: "Too many requests. Please try again later."}
}

func Timeout(service string) *Error {
	return &Error{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Message: service + " timed out"}
}

func Internal(message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: message}
}

// From classifies err. Unrecognised errors become INTERNAL_ERROR with the
// original message.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "Resource not found", Err: err}
	case errors.Is(err, ErrConflict):
		return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: "Resource already exists", Err: err}
	case errors.Is(err, ai.ErrNotConfigured):
		return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: ai.ErrNotConfigured.Error(), Err: err}
	case errors.Is(err, ai.ErrTimeout):
		return &Error{Status: http.StatusGatewayTimeout, Code: CodeTimeout, Message: "AI service timed out", Err: err}
	case errors.Is(err, ai.ErrInvalidResponse):
		return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: ai.ErrInvalidResponse.Error(), Err: err}
	}

	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: err.Error(), Err: err}
}

const exposeKey = "apierr.expose_internal"

// Middleware controls whether internal error messages reach clients.
// Only development should expose them.
func Middleware(exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(exposeKey, exposeInternal)
		c.Next()
	}
}

// Respond logs err, forwards it to the error tracker and writes the JSON
// error body. The code is always preserved.
func Respond(c *gin.Context, err error) {
	apiErr := From(err)

	attrs := []any{
		"code", apiErr.Code,
		"status", apiErr.Status,
		"path", c.FullPath(),
		"error", err.Error(),
	}
	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("API error", attrs...)
	} else {
		slog.Warn("API error", attrs...)
	}
	tracking.From(c).Capture(c.Request.Context(), err, map[string]string{
		"code":  apiErr.Code,
		"route": c.FullPath(),
	})

	message := apiErr.Message
	if apiErr.Code == CodeInternal && !c.GetBool(exposeKey) {
		message = genericMessage
	}

	body := gin.H{
		"error": message,
		"code":  apiErr.Code,
	}
	if len(apiErr.Details) > 0 {
		body["details"] = apiErr.Details
	}
	for k, v := range apiErr.Extra {
		body[k] = v
	}

	c.AbortWithStatusJSON(apiErr.Status, body)
}
