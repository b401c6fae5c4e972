package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal_relay"

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
)

// Rejection reasons.
const (
	ReasonDecode      = "decode"
	ReasonValidation  = "validation"
	ReasonUnknownType = "unknown_type"
)

// Metrics holds relay collectors registered in its own registry.
type Metrics struct {
	reg *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	Rejected          *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open signaling connections.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Decoded inbound messages by type.",
		}, []string{"type"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound envelope deliveries by event and outcome.",
		}, []string{"event", "outcome"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Inbound messages answered with error by reason.",
		}, []string{"reason"}),
	}
	m.reg.MustRegister(
		m.ConnectionsActive,
		m.MessagesReceived,
		m.Deliveries,
		m.Rejected,
		collectors.NewGoCollector(),
	)
	return m
}

// TrackChannels exposes number of live channels reported by fn.
func (m *Metrics) TrackChannels(fn func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channels",
		Help:      "Number of channels with at least one member.",
	}, func() float64 {
		return float64(fn())
	}))
}

func (m *Metrics) Delivered(event string, sent bool) {
	outcome := OutcomeSent
	if !sent {
		outcome = OutcomeSkipped
	}
	m.Deliveries.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
