package unifiedllm

import (
	"fmt"

	"github.com/pkg/errors"
)

// SDKError carries a message and the error that caused it. Every error this
// package returns embeds one.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *SDKError) Unwrap() error { return e.Cause }

func (e *SDKError) setCause(err error) { e.Cause = err }

// withCause records the backend's own error on a mapped error.
func withCause(mapped, cause error) error {
	if c, ok := mapped.(interface{ setCause(error) }); ok {
		c.setCause(cause)
	}
	return mapped
}

// ProviderError is a failure the backend reported with a status code.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	ErrorCode  string
	Retryable  bool
	// RetryAfter is the backend's requested delay in seconds, if it sent one.
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Status-specific provider errors.
type (
	InvalidRequestError struct{ ProviderError }
	AuthenticationError struct{ ProviderError }
	AccessDeniedError   struct{ ProviderError }
	NotFoundError       struct{ ProviderError }
	ContextLengthError  struct{ ProviderError }
	RateLimitError      struct{ ProviderError }
	ServerError         struct{ ProviderError }
	OverloadedError     struct{ ProviderError }
)

// Failures that never got a status code from the backend.
type (
	ConfigurationError   struct{ SDKError }
	NetworkError         struct{ SDKError }
	RequestTimeoutError  struct{ SDKError }
	AbortError           struct{ SDKError }
	InvalidResponseError struct{ SDKError }
)

var statusErrors = map[int]func(ProviderError) error{
	400: func(pe ProviderError) error { return &InvalidRequestError{pe} },
	422: func(pe ProviderError) error { return &InvalidRequestError{pe} },
	401: func(pe ProviderError) error { return &AuthenticationError{pe} },
	403: func(pe ProviderError) error { return &AccessDeniedError{pe} },
	404: func(pe ProviderError) error { return &NotFoundError{pe} },
	413: func(pe ProviderError) error { return &ContextLengthError{pe} },
	429: func(pe ProviderError) error { return &RateLimitError{pe} },
	500: func(pe ProviderError) error { return &ServerError{pe} },
	502: func(pe ProviderError) error { return &ServerError{pe} },
	503: func(pe ProviderError) error { return &ServerError{pe} },
	504: func(pe ProviderError) error { return &ServerError{pe} },
	529: func(pe ProviderError) error { return &OverloadedError{pe} },
}

// ErrorFromStatusCode builds the typed error for an HTTP status. Rate
// limits and 5xx responses are retryable; 408 becomes a RequestTimeoutError.
func ErrorFromStatusCode(statusCode int, message, provider, errorCode string, retryAfter *float64) error {
	if statusCode == 408 {
		return &RequestTimeoutError{SDKError{Message: message}}
	}
	pe := ProviderError{
		SDKError:   SDKError{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Retryable:  statusCode == 429 || statusCode >= 500,
		RetryAfter: retryAfter,
	}
	if build, ok := statusErrors[statusCode]; ok {
		return build(pe)
	}
	return &pe
}

type retryable interface {
	retryable() bool
}

func (e *ProviderError) retryable() bool { return e.Retryable }
func (*NetworkError) retryable() bool { return true }
func (*RequestTimeoutError) retryable() bool { return true }
func (*ConfigurationError) retryable() bool { return false }
func (*AbortError) retryable() bool { return false }
func (*InvalidResponseError) retryable() bool { return false }

// IsRetryable reports whether err is worth another attempt. Errors from
// outside this package are assumed to be transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.retryable()
	}
	return true
}
