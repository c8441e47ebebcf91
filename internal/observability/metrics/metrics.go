package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the booking assistant. All methods
// are nil-safe so components can run without metrics in tests.
type Metrics struct {
	inboundTotal    *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	llmLatency      *prometheus.HistogramVec
	bookingsCreated *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
}

// New registers the metric set on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "webhooks",
			Name:      "inbound_total",
			Help:      "Total inbound webhook deliveries",
		}, []string{"platform", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one conversation turn end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"platform", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "engine",
			Name:      "llm_latency_seconds",
			Help:      "Latency of model completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model", "status"}),
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Bookings created from completed conversations",
		}, []string{"platform"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "channels",
			Name:      "outbound_total",
			Help:      "Outbound reply sends",
		}, []string{"platform", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnLatency, m.llmLatency, m.bookingsCreated, m.outboundTotal)
	return m
}

// ObserveInbound counts one webhook delivery.
func (m *Metrics) ObserveInbound(platform, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(platform, status).Inc()
}

// ObserveTurn records one processed turn.
func (m *Metrics) ObserveTurn(platform string, d time.Duration, status string) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(platform, status).Observe(d.Seconds())
}

// ObserveLLM records one model call.
func (m *Metrics) ObserveLLM(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmLatency.WithLabelValues(model, status).Observe(d.Seconds())
}

// BookingCreated counts a booking finalized by the engine.
func (m *Metrics) BookingCreated(platform string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(platform).Inc()
}

// ObserveOutbound counts a reply send attempt.
func (m *Metrics) ObserveOutbound(platform string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.outboundTotal.WithLabelValues(platform, status).Inc()
}
