// request_executor.go
// -------------------
// RequestExecutor runs one call as an Operation: it resolves credentials, builds and
// sends the request, classifies the response and retries only when the provider's
// rate-limit policy says the attempt was throttled. Every other failure (network
// errors, 4xx, 5xx) settles the operation immediately with an *APIError.
package resilientbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RequestExecutor handles retry logic, backoff, and consulting RateLimiter.
type RequestExecutor struct {
	sdk *ResilientBridge
}

func NewRequestExecutor(sdk *ResilientBridge) *RequestExecutor {
	return &RequestExecutor{sdk: sdk}
}

// call is everything one request needs, snapshotted when the call starts.
type call struct {
	provider    string
	requestID   string
	baseURL     string
	desc        *RequestDescription
	body        any
	rateLimit   RateLimitConfig
	client      *http.Client
	headers     map[string]string
	headerSrcs  []HeaderSource
	callHeaders map[string]string
	credentials CredentialSource
}

// Execute is the Operation executor for c.
func (re *RequestExecutor) Execute(c *call) Executor[*RequestResult] {
	return func(ctx context.Context, settle Settler[*RequestResult]) {
		re.run(ctx, c, settle)
	}
}

func (re *RequestExecutor) run(ctx context.Context, c *call, settle Settler[*RequestResult]) {
	logger := re.sdk.entry().WithFields(log.Fields{
		"provider":   c.provider,
		"request_id": c.requestID,
		"method":     c.desc.Method,
	})
	maxAttempts := c.rateLimit.MaxAttempts()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if err := re.sdk.rateLimiter.Wait(ctx, c.provider); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The limiter refuses waits that would outlast the deadline.
			re.reject(settle, c, &APIError{Kind: KindTransport, Request: c.desc, Attempts: attempt, Err: err})
			return
		}

		req, err := re.newRequest(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			re.reject(settle, c, &APIError{Kind: KindTransport, Request: c.desc, Attempts: attempt, Err: err})
			return
		}

		// The token is checked right before I/O so a canceled operation never reaches
		// the transport.
		if ctx.Err() != nil {
			return
		}
		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		settle.OnCancel(cancelAttempt)

		logger.WithField("attempt", attempt).Debugf("Sending request to %s", req.URL.Redacted())
		res, err := re.send(c.client, req.WithContext(attemptCtx))
		cancelAttempt()
		if err != nil && ctx.Err() != nil {
			return
		}

		now := re.sdk.now()
		var info *RateLimitInfo
		if res != nil {
			info = c.rateLimit.ParseRateLimitInfo(res.Header, now)
			re.sdk.rateLimiter.UpdateRateLimits(c.provider, info)
			re.sdk.metrics.observeRateLimit(c.provider, info)
		}

		throttled := c.rateLimit.IsRateLimited(res, err)
		if throttled && attempt < maxAttempts {
			delay := c.rateLimit.RetryDelay(info, attempt, now)
			logger.WithFields(log.Fields{
				"attempt": attempt,
				"max":     maxAttempts,
				"delay":   delay,
			}).Info("Rate limited, backing off before retry")
			re.sdk.metrics.observeRetry(c.provider)
			if sleepContext(ctx, delay) != nil {
				return
			}
			continue
		}

		if err != nil {
			kind := KindTransport
			if throttled {
				kind = KindRateLimit
			}
			re.reject(settle, c, &APIError{Kind: kind, URL: req.URL.String(), Request: c.desc, Attempts: attempt, Err: err})
			return
		}

		label, labeled := c.desc.ErrorLabels[res.StatusCode]
		if throttled || labeled || !res.OK {
			apiErr := &APIError{
				Kind:       classify(res.StatusCode, throttled),
				Status:     res.StatusCode,
				StatusText: res.StatusText,
				Label:      label,
				Body:       res.Body(),
				Request:    c.desc,
				URL:        res.URL,
				RateLimit:  info,
				Attempts:   attempt,
			}
			re.reject(settle, c, apiErr)
			return
		}

		if attempt > 1 {
			logger.Debugf("Request succeeded after %d attempts", attempt)
		}
		settle.Resolve(res)
		return
	}
}

func classify(status int, throttled bool) ErrorKind {
	switch {
	case throttled:
		return KindRateLimit
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

func (re *RequestExecutor) reject(settle Settler[*RequestResult], c *call, apiErr *APIError) {
	apiErr.Provider = c.provider
	re.sdk.metrics.observeFailure(c.provider, apiErr.Kind)
	re.sdk.entry().WithFields(log.Fields{
		"provider":   c.provider,
		"request_id": c.requestID,
		"kind":       apiErr.Kind,
		"status":     apiErr.Status,
		"attempts":   apiErr.Attempts,
	}).Debug("Request failed")
	settle.Reject(apiErr)
}

// newRequest resolves headers and credentials for one attempt and builds the request.
func (re *RequestExecutor) newRequest(ctx context.Context, c *call) (*http.Request, error) {
	target, err := BuildURL(c.baseURL, c.desc)
	if err != nil {
		return nil, err
	}
	body, contentType, err := EncodeBody(c.body, c.desc.ContentType)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(c.desc.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for _, src := range c.headerSrcs {
		extra, err := src(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving headers: %w", err)
		}
		for k, v := range extra {
			req.Header.Set(k, v)
		}
	}
	for k, v := range c.desc.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range c.callHeaders {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", c.requestID)
	}

	if c.credentials != nil {
		cred, err := c.credentials.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving credentials: %w", err)
		}
		cred.Apply(req.Header)
	}
	return req, nil
}

func (re *RequestExecutor) send(client *http.Client, req *http.Request) (*RequestResult, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return newRequestResult(req.URL.String(), resp, data), nil
}
