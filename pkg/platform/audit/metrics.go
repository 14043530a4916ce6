package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks fan-out health. A nil *Metrics is a no-op.
type Metrics struct {
	delivered    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	dropped      prometheus.Counter
	breakerState *prometheus.GaugeVec
}

// NewMetrics registers fan-out metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_ledger_events_delivered_total",
			Help: "Ledger events delivered, by sink",
		}, []string{"sink"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_ledger_events_failed_total",
			Help: "Ledger events that failed or were skipped by an open breaker, by sink",
		}, []string{"sink"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "efrn_ledger_events_dropped_total",
			Help: "Ledger events evicted from a full buffer",
		}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "efrn_ledger_events_breaker_open",
			Help: "1 while a sink's circuit breaker is open",
		}, []string{"sink"}),
	}
}

func (m *Metrics) incDelivered(sink string, n int) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(sink).Add(float64(n))
}

func (m *Metrics) incFailed(sink string, n int) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(sink).Add(float64(n))
}

func (m *Metrics) incDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) setBreakerOpen(sink string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerState.WithLabelValues(sink).Set(v)
}
