package resilientbridge

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited           = errors.New("rate limited")
	ErrClient                = errors.New("client error")
	ErrServer                = errors.New("server error")
	ErrTransport             = errors.New("transport error")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrInvalidRequest        = errors.New("invalid request description")
)

// ErrorKind classifies a terminal request failure.
type ErrorKind string

const (
	// KindTransport covers network failures, credential resolution failures and
	// requests that could not be built. Never retried.
	KindTransport ErrorKind = "transport"
	// KindRateLimit is a throttled response that exhausted its retries.
	KindRateLimit ErrorKind = "rate_limit"
	// KindClient is any other failed response below 500.
	KindClient ErrorKind = "client"
	// KindServer is a 5xx response. Never retried here.
	KindServer ErrorKind = "server"
)

// APIError is the single terminal failure value of a request. It is built once and
// not modified afterwards.
type APIError struct {
	Kind       ErrorKind
	Provider   string
	Status     int
	StatusText string
	// Label is the ErrorLabels entry for Status, if any.
	Label string
	Body  []byte
	// Request is the description the call was made from.
	Request   *RequestDescription
	URL       string
	RateLimit *RateLimitInfo
	Attempts  int
	Err       error
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s request failed: %v", e.Provider, e.Kind, e.Err)
	case e.Label != "":
		return fmt.Sprintf("%s: %s error %d (%s) after %d attempt(s)", e.Provider, e.Kind, e.Status, e.Label, e.Attempts)
	default:
		return fmt.Sprintf("%s: %s error %d %s after %d attempt(s)", e.Provider, e.Kind, e.Status, e.StatusText, e.Attempts)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers match an APIError against the package sentinels with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.IsRateLimitError()
	case ErrClient:
		return e.Kind == KindClient
	case ErrServer:
		return e.Kind == KindServer
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// IsRateLimitError reports whether the failure was caused by provider throttling.
func (e *APIError) IsRateLimitError() bool {
	return e.Kind == KindRateLimit || e.Status == 429
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRateLimitError reports whether err is, or wraps, a rate-limit APIError.
func IsRateLimitError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.IsRateLimitError()
}
