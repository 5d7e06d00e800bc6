package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	dropReasonQueueFull = "queue_full"
	dropReasonNoTarget  = "no_target"
)

// Metrics holds the relay's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	participants prometheus.Gauge
	calls        prometheus.Gauge
	forwarded    prometheus.Counter
	dropped      *prometheus.CounterVec
}

// NewMetrics creates the relay collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_participants",
			Help: "Number of currently registered participant connections.",
		}),
		calls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_calls",
			Help: "Number of calls with at least one registered participant.",
		}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_forwarded_total",
			Help: "Setup messages queued for delivery to a recipient.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Setup messages dropped for a recipient.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.participants, m.calls, m.forwarded, m.dropped)
	}
	return m
}

func (m *Metrics) setSizes(participants, calls int) {
	if m == nil {
		return
	}
	m.participants.Set(float64(participants))
	m.calls.Set(float64(calls))
}

func (m *Metrics) incForwarded() {
	if m == nil {
		return
	}
	m.forwarded.Inc()
}

func (m *Metrics) incDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}
