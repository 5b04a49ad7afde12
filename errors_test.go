package resilientbridge_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

func TestAPIError_Is(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *resilientbridge.APIError
		is   error
		not  []error
	}{
		{
			name: "rate limit",
			err:  &resilientbridge.APIError{Kind: resilientbridge.KindRateLimit, Status: 429},
			is:   resilientbridge.ErrRateLimited,
			not:  []error{resilientbridge.ErrClient, resilientbridge.ErrServer, resilientbridge.ErrTransport},
		},
		{
			name: "client",
			err:  &resilientbridge.APIError{Kind: resilientbridge.KindClient, Status: 404},
			is:   resilientbridge.ErrClient,
			not:  []error{resilientbridge.ErrRateLimited, resilientbridge.ErrServer},
		},
		{
			name: "server",
			err:  &resilientbridge.APIError{Kind: resilientbridge.KindServer, Status: 502},
			is:   resilientbridge.ErrServer,
			not:  []error{resilientbridge.ErrRateLimited, resilientbridge.ErrClient},
		},
		{
			name: "transport",
			err:  &resilientbridge.APIError{Kind: resilientbridge.KindTransport, Err: errors.New("reset by peer")},
			is:   resilientbridge.ErrTransport,
			not:  []error{resilientbridge.ErrRateLimited},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("listing issues: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.is)
			for _, other := range tt.not {
				assert.NotErrorIs(t, wrapped, other)
			}
			got, ok := resilientbridge.AsAPIError(wrapped)
			assert.True(t, ok)
			assert.Same(t, tt.err, got)
		})
	}
}

func TestAPIError_IsRateLimitError(t *testing.T) {
	t.Parallel()

	assert.True(t, (&resilientbridge.APIError{Kind: resilientbridge.KindRateLimit, Status: 403}).IsRateLimitError())
	assert.True(t, (&resilientbridge.APIError{Kind: resilientbridge.KindClient, Status: 429}).IsRateLimitError())
	assert.False(t, (&resilientbridge.APIError{Kind: resilientbridge.KindClient, Status: 404}).IsRateLimitError())
	assert.False(t, resilientbridge.IsRateLimitError(errors.New("plain")))
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	labeled := &resilientbridge.APIError{Provider: "github", Kind: resilientbridge.KindClient, Status: 404, Label: "repository not found", Attempts: 1}
	assert.Equal(t, "github: client error 404 (repository not found) after 1 attempt(s)", labeled.Error())

	transport := &resilientbridge.APIError{Provider: "slack", Kind: resilientbridge.KindTransport, Err: errors.New("dial failed")}
	assert.Equal(t, "slack: transport request failed: dial failed", transport.Error())
	assert.ErrorContains(t, transport.Unwrap(), "dial failed")
}
