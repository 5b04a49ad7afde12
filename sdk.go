// sdk.go
// ------
// The sdk.go file contains the core ResilientBridge struct and its methods.
// This is the main entry point of the SDK for users.
//
// Key functionalities include:
// - Initializing the SDK with NewResilientBridge()
// - Registering providers with RegisterProvider()
// - Starting cancelable calls via sdk.Do() or blocking ones via sdk.Request()
// - Retrieving the last rate limit info a provider reported
//
// The ResilientBridge relies on a RateLimiter and a RequestExecutor to handle
// rate limiting and retries, ensuring consistent behavior across all providers.
package resilientbridge

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type registeredProvider struct {
	adapter ProviderAdapter
	config  *ProviderConfig
	client  *http.Client
}

type ResilientBridge struct {
	mu          sync.Mutex
	providers   map[string]*registeredProvider
	rateLimiter *RateLimiter
	executor    *RequestExecutor

	logger  *log.Logger
	metrics *Metrics
	client  *http.Client
	now     func() time.Time
}

// Option configures a ResilientBridge.
type Option func(*ResilientBridge)

// WithLogger replaces the default logger, which only reports warnings.
func WithLogger(logger *log.Logger) Option {
	return func(sdk *ResilientBridge) {
		if logger != nil {
			sdk.logger = logger
		}
	}
}

// WithMetrics records outbound metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(sdk *ResilientBridge) { sdk.metrics = m }
}

// WithHTTPClient sets the client used by providers without their own.
func WithHTTPClient(client *http.Client) Option {
	return func(sdk *ResilientBridge) {
		if client != nil {
			sdk.client = client
		}
	}
}

// WithClock overrides the clock used to interpret reset headers.
func WithClock(now func() time.Time) Option {
	return func(sdk *ResilientBridge) {
		if now != nil {
			sdk.now = now
			sdk.rateLimiter.now = now
		}
	}
}

func NewResilientBridge(opts ...Option) *ResilientBridge {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)

	sdk := &ResilientBridge{
		providers:   make(map[string]*registeredProvider),
		rateLimiter: NewRateLimiter(),
		logger:      logger,
		client:      http.DefaultClient,
		now:         time.Now,
	}
	sdk.executor = NewRequestExecutor(sdk)
	for _, opt := range opts {
		opt(sdk)
	}
	return sdk
}

// SetDebug enables or disables debug logging for the SDK.
func (sdk *ResilientBridge) SetDebug(enabled bool) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	if enabled {
		sdk.logger.SetLevel(log.DebugLevel)
	} else {
		sdk.logger.SetLevel(log.WarnLevel)
	}
}

// RegisterProvider associates a ProviderAdapter with a provider name and configuration.
// Registering a name again replaces the previous adapter and resets its limits.
func (sdk *ResilientBridge) RegisterProvider(name string, adapter ProviderAdapter, config *ProviderConfig) {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()

	client := sdk.client
	if config != nil && config.HTTPClient != nil {
		client = config.HTTPClient
	}
	sdk.providers[name] = &registeredProvider{
		adapter: adapter,
		config:  config,
		client:  sdk.metrics.WrapClient(name, client),
	}
	sdk.rateLimiter.Configure(name, config)

	sdk.entry().WithField("provider", name).Debugf("Registered provider with base URL %s", adapter.BaseURL())
}

// Providers returns the registered provider names in sorted order.
func (sdk *ResilientBridge) Providers() []string {
	sdk.mu.Lock()
	defer sdk.mu.Unlock()
	return slices.Sorted(maps.Keys(sdk.providers))
}

// CallOption customizes a single call.
type CallOption func(*call)

// WithRateLimitConfig overrides the provider's rate-limit policy for one call.
func WithRateLimitConfig(cfg RateLimitConfig) CallOption {
	return func(c *call) { c.rateLimit = cfg }
}

// WithHeaders adds headers to one call. They win over every other header source
// except credentials.
func WithHeaders(headers map[string]string) CallOption {
	return func(c *call) {
		if c.callHeaders == nil {
			c.callHeaders = make(map[string]string, len(headers))
		}
		maps.Copy(c.callHeaders, headers)
	}
}

// WithHeaderSource adds a header source resolved before every attempt.
func WithHeaderSource(src HeaderSource) CallOption {
	return func(c *call) {
		if src != nil {
			c.headerSrcs = append(c.headerSrcs, src)
		}
	}
}

// WithCredentials replaces the credential source for one call.
func WithCredentials(src CredentialSource) CallOption {
	return func(c *call) { c.credentials = src }
}

// Do starts a call to the named provider and returns immediately. Cancel the returned
// operation, or ctx, to abort it.
func (sdk *ResilientBridge) Do(ctx context.Context, providerName string, desc *RequestDescription, opts ...CallOption) *Operation[*RequestResult] {
	c, err := sdk.newCall(providerName, desc, opts)
	if err != nil {
		return Go(ctx, func(_ context.Context, settle Settler[*RequestResult]) {
			settle.Reject(err)
		})
	}
	return Go(ctx, sdk.executor.Execute(c))
}

// Request sends desc to the specified provider and waits for the result.
// It uses the RequestExecutor to handle retries, rate limits, and backoff.
func (sdk *ResilientBridge) Request(ctx context.Context, providerName string, desc *RequestDescription, opts ...CallOption) (*RequestResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return sdk.Do(ctx, providerName, desc, opts...).Wait(ctx)
}

func (sdk *ResilientBridge) newCall(providerName string, desc *RequestDescription, opts []CallOption) (*call, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil description", ErrInvalidRequest)
	}

	sdk.mu.Lock()
	p, ok := sdk.providers[providerName]
	sdk.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}

	headers := make(map[string]string)
	maps.Copy(headers, p.adapter.DefaultHeaders())
	if p.config != nil {
		maps.Copy(headers, p.config.Headers)
	}

	body := desc.Body
	if r, ok := body.(io.Reader); ok {
		// Readers are drained once so every attempt sends the same bytes.
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrInvalidRequest, err)
		}
		body = data
	}

	c := &call{
		provider:    providerName,
		requestID:   uuid.NewString(),
		baseURL:     p.adapter.BaseURL(),
		desc:        desc,
		body:        body,
		rateLimit:   p.config.rateLimitFor(p.adapter),
		client:      p.client,
		headers:     headers,
		credentials: p.config.credentialsFor(p.adapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetRateLimitInfo returns the current known rate limit info for a given provider.
func (sdk *ResilientBridge) GetRateLimitInfo(providerName string) *RateLimitInfo {
	return sdk.rateLimiter.GetRateLimitInfo(providerName)
}

func (sdk *ResilientBridge) entry() *log.Entry {
	return log.NewEntry(sdk.logger)
}
