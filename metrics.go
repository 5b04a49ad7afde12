package resilientbridge

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	requestTotalMetricName       = "resilient_bridge_requests_total"
	requestDurationMetricName    = "resilient_bridge_request_duration_seconds"
	retryTotalMetricName         = "resilient_bridge_retries_total"
	failureTotalMetricName       = "resilient_bridge_failures_total"
	rateLimitRemainingMetricName = "resilient_bridge_rate_limit_remaining"
	rateLimitLimitMetricName     = "resilient_bridge_rate_limit_limit"
	rateLimitResetMetricName     = "resilient_bridge_rate_limit_reset"
)

// Metrics holds the outbound collectors. A nil *Metrics records nothing.
type Metrics struct {
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	retryTotal         *prometheus.CounterVec
	failureTotal       *prometheus.CounterVec
	rateLimitRemaining *prometheus.GaugeVec
	rateLimitLimit     *prometheus.GaugeVec
	rateLimitReset     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: requestTotalMetricName,
				Help: "Total number of outbound API requests per provider",
			},
			[]string{"provider", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    requestDurationMetricName,
				Help:    "Outbound API request duration in seconds, per provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "method"},
		),
		retryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: retryTotalMetricName,
				Help: "Number of retries caused by rate limiting, per provider",
			},
			[]string{"provider"},
		),
		failureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: failureTotalMetricName,
				Help: "Terminal request failures per provider and error kind",
			},
			[]string{"provider", "kind"},
		),
		rateLimitRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: rateLimitRemainingMetricName,
				Help: "The number of requests remaining in the current rate limit window",
			},
			[]string{"provider"},
		),
		rateLimitLimit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: rateLimitLimitMetricName,
				Help: "The maximum number of requests allowed in the current rate limit window",
			},
			[]string{"provider"},
		),
		rateLimitReset: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: rateLimitResetMetricName,
				Help: "The time at which the current rate limit window resets, in UTC epoch seconds",
			},
			[]string{"provider"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.retryTotal, m.failureTotal,
			m.rateLimitRemaining, m.rateLimitLimit, m.rateLimitReset)
	}
	return m
}

func (m *Metrics) observeRetry(provider string) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) observeFailure(provider string, kind ErrorKind) {
	if m == nil {
		return
	}
	m.failureTotal.WithLabelValues(provider, string(kind)).Inc()
}

func (m *Metrics) observeRateLimit(provider string, info *RateLimitInfo) {
	if m == nil || info == nil {
		return
	}
	if info.Remaining != nil {
		m.rateLimitRemaining.WithLabelValues(provider).Set(float64(*info.Remaining))
	}
	if info.Limit != nil {
		m.rateLimitLimit.WithLabelValues(provider).Set(float64(*info.Limit))
	}
	if info.Reset != nil {
		m.rateLimitReset.WithLabelValues(provider).Set(float64(info.Reset.Unix()))
	}
}

// MetricsTransport is a custom http.RoundTripper that records request counts and
// durations for one provider.
type MetricsTransport struct {
	next     http.RoundTripper
	provider string
	metrics  *Metrics
}

// RoundTrip implements http.RoundTripper interface and collects metrics
func (t *MetricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(startTime)

	t.metrics.requestDuration.WithLabelValues(t.provider, req.Method).Observe(duration.Seconds())

	status := "0"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	t.metrics.requestTotal.WithLabelValues(t.provider, req.Method, status).Inc()

	return resp, err
}

// WrapClient returns a shallow copy of client whose transport records metrics for
// provider. With a nil receiver the client is returned unchanged.
func (m *Metrics) WrapClient(provider string, client *http.Client) *http.Client {
	if m == nil {
		return client
	}
	if client == nil {
		client = http.DefaultClient
	}
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &MetricsTransport{next: next, provider: provider, metrics: m}
	return &wrapped
}
