// request_response.go
// -------------------
// This file defines the declarative request description handed to the bridge, the
// per-attempt result produced by the transport, and the rate-limit metadata extracted
// from response headers.
package resilientbridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// RequestDescription declares one outbound call. The bridge never mutates it.
type RequestDescription struct {
	Method string
	// URL is either absolute or relative to the provider base URL and may contain
	// {param} placeholders resolved from PathParams.
	URL        string
	PathParams map[string]string
	// Query values may be scalars, slices (repeated key=) or string-keyed maps
	// (key[sub]=), nested arbitrarily.
	Query       map[string]any
	Body        any
	ContentType string
	Headers     map[string]string
	// ErrorLabels maps status codes to human-readable labels. A labeled status is
	// always treated as a failure.
	ErrorLabels map[int]string
}

// RequestResult is the outcome of one transport attempt.
type RequestResult struct {
	URL        string
	OK         bool
	StatusCode int
	StatusText string
	Header     http.Header

	// Exactly one of JSON or Text is set for a non-empty body.
	JSON json.RawMessage
	Text string
}

// Body returns the raw response body regardless of how it was classified.
func (r *RequestResult) Body() []byte {
	if r == nil {
		return nil
	}
	if r.JSON != nil {
		return r.JSON
	}
	return []byte(r.Text)
}

// Decode unmarshals the JSON body into v.
func (r *RequestResult) Decode(v any) error {
	if r == nil || r.JSON == nil {
		return errors.New("response has no JSON body")
	}
	return json.Unmarshal(r.JSON, v)
}

func newRequestResult(url string, resp *http.Response, body []byte) *RequestResult {
	res := &RequestResult{
		URL:        url,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     resp.Header,
	}
	if len(body) == 0 {
		return res
	}
	if json.Valid(body) {
		res.JSON = json.RawMessage(body)
	} else {
		res.Text = string(body)
	}
	return res
}

// RateLimitInfo is the rate-limit metadata a provider reported on a response.
// Fields are nil when the provider did not send the corresponding header.
type RateLimitInfo struct {
	RetryAfter *time.Duration
	Reset      *time.Time
	Remaining  *int
	Limit      *int
}

// Empty reports whether no rate-limit header was found.
func (i *RateLimitInfo) Empty() bool {
	return i == nil || (i.RetryAfter == nil && i.Reset == nil && i.Remaining == nil && i.Limit == nil)
}

// Exhausted reports whether the provider said no requests remain in the current window.
func (i *RateLimitInfo) Exhausted() bool {
	return i != nil && i.Remaining != nil && *i.Remaining <= 0
}

func (i *RateLimitInfo) clone() *RateLimitInfo {
	if i == nil {
		return nil
	}
	c := &RateLimitInfo{}
	if i.RetryAfter != nil {
		v := *i.RetryAfter
		c.RetryAfter = &v
	}
	if i.Reset != nil {
		v := *i.Reset
		c.Reset = &v
	}
	if i.Remaining != nil {
		v := *i.Remaining
		c.Remaining = &v
	}
	if i.Limit != nil {
		v := *i.Limit
		c.Limit = &v
	}
	return c
}
