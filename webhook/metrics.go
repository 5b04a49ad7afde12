// webhook/metrics.go
// ------------------
// Delivery counters by provider and outcome.

package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	deliveryTotalMetricName = "resilient_bridge_webhook_deliveries_total"
	eventTotalMetricName    = "resilient_bridge_webhook_events_total"
)

// Metrics counts inbound deliveries. A nil *Metrics records nothing.
type Metrics struct {
	deliveries *prometheus.CounterVec
	events     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: deliveryTotalMetricName,
				Help: "Inbound webhook deliveries per provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: eventTotalMetricName,
				Help: "Dispatched webhook events per provider, event type and outcome",
			},
			[]string{"provider", "event", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.deliveries, m.events)
	}
	return m
}

func (m *Metrics) observe(provider string, res Result) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(provider, outcome(res)).Inc()
	for _, ev := range res.Events {
		o := "success"
		if !ev.Success {
			o = "handler_error"
		}
		m.events.WithLabelValues(provider, ev.EventType, o).Inc()
	}
}

func outcome(res Result) string {
	switch {
	case res.Success && res.Challenge != "":
		return "handshake"
	case res.Success:
		return "success"
	case IsSignatureError(res.Err):
		return "unauthorized"
	default:
		return "failed"
	}
}
