package llmrelay

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes. Check with errors.Is().
var (
	// ErrInvalidAPIKey indicates the API key is missing, malformed, or
	// unauthorized.
	ErrInvalidAPIKey = errors.New("llmrelay: invalid API key")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmrelay: rate limit exceeded")

	// ErrProviderUnavailable indicates the provider service is down or
	// returned a server-side error.
	ErrProviderUnavailable = errors.New("llmrelay: provider unavailable")

	// ErrInvalidRequest indicates the request was rejected as malformed.
	ErrInvalidRequest = errors.New("llmrelay: invalid request")
)

// ProviderError represents a failure reported by the underlying provider API.
type ProviderError struct {
	Provider   string // provider label, e.g. "Anthropic"
	StatusCode int    // HTTP status code, 0 if not applicable
	Message    string // detail from the provider
	Retryable  bool   // whether the caller may reasonably retry
	Err        error  // wrapped sentinel error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s completion error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s completion error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClassifyHTTPStatus wraps a non-2xx response into a ProviderError with a
// user-actionable classification derived from the HTTP status.
func ClassifyHTTPStatus(provider string, status int, message string) error {
	perr := &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
	}
	switch {
	case status == 401 || status == 403:
		perr.Message = "authentication failed: " + message
		perr.Err = ErrInvalidAPIKey
	case status == 429:
		perr.Message = "rate limit exceeded: " + message
		perr.Retryable = true
		perr.Err = ErrRateLimited
	case status >= 500:
		perr.Message = "provider server error: " + message
		perr.Retryable = true
		perr.Err = ErrProviderUnavailable
	case status >= 400:
		perr.Err = ErrInvalidRequest
	default:
		perr.Err = ErrProviderUnavailable
	}
	return perr
}

// CompletionError wraps an arbitrary failure with a provider-name prefix,
// preserving an already-classified ProviderError as is.
func CompletionError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

// IsRetryable reports whether an error is potentially retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// IsAuthError reports whether an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode == 401 || perr.StatusCode == 403
	}
	return false
}
