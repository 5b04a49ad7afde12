// rate_limiter.go
// ----------------
// This file defines the RateLimiter type, which stores the last rate-limit info reported
// by each provider and gates new attempts before they reach the transport.
//
// Responsibilities:
// - Storing rate limit info keyed by provider name.
// - Holding a request until the reset instant when the provider reported zero remaining
//   requests (only for providers registered with UseProviderLimits).
// - Applying an optional client-side token bucket per provider.
package resilientbridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type providerLimits struct {
	info              *RateLimitInfo
	limiter           *rate.Limiter
	useProviderLimits bool
}

type RateLimiter struct {
	mu        sync.Mutex
	providers map[string]*providerLimits
	now       func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		providers: make(map[string]*providerLimits),
		now:       time.Now,
	}
}

// Configure installs the limits for a provider, replacing any previous state.
func (r *RateLimiter) Configure(provider string, config *ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider] = &providerLimits{
		limiter:           config.limiter(),
		useProviderLimits: config != nil && config.UseProviderLimits,
	}
}

// UpdateRateLimits stores the info reported on the latest response. A nil info keeps
// what was stored before.
func (r *RateLimiter) UpdateRateLimits(provider string, info *RateLimitInfo) {
	if info == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.entry(provider)
	p.info = info.clone()
}

// GetRateLimitInfo returns a copy of the last info reported by provider, or nil.
func (r *RateLimiter) GetRateLimitInfo(provider string) *RateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[provider]; ok {
		return p.info.clone()
	}
	return nil
}

// Wait blocks until a request to provider may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, provider string) error {
	if delay := r.delayBeforeNextRequest(provider); delay > 0 {
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}

	r.mu.Lock()
	var limiter *rate.Limiter
	if p, ok := r.providers[provider]; ok {
		limiter = p.limiter
	}
	r.mu.Unlock()

	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// delayBeforeNextRequest calculates how long we must wait before making another request
// if the provider reported an exhausted window.
func (r *RateLimiter) delayBeforeNextRequest(provider string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[provider]
	if !ok || !p.useProviderLimits || !p.info.Exhausted() || p.info.Reset == nil {
		return 0
	}
	if d := p.info.Reset.Sub(r.now()); d > 0 {
		return d
	}
	return 0
}

func (r *RateLimiter) entry(provider string) *providerLimits {
	p, ok := r.providers[provider]
	if !ok {
		p = &providerLimits{}
		r.providers[provider] = p
	}
	return p
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
