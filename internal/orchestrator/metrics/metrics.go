package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"efrn/internal/transaction/models"
)

// Metrics provides observability for transaction evaluation.
type Metrics struct {
	// Final outcomes of first runs
	Transactions *prometheus.CounterVec

	// Per-agent verdicts, including override re-runs
	AgentVerdicts *prometheus.CounterVec

	// Duration of a full first run including the ledger append
	PipelineDuration prometheus.Histogram

	// Override outcomes: resolved status or refusal code
	Overrides *prometheus.CounterVec

	// Ledger appends by status
	LedgerAppends *prometheus.CounterVec
}

// New registers the metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_transactions_total",
			Help: "Total evaluated transactions by final status",
		}, []string{"final_status"}),

		AgentVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_agent_verdicts_total",
			Help: "Total agent verdicts by agent and step status",
		}, []string{"agent", "status"}),

		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "efrn_pipeline_duration_seconds",
			Help:    "Duration of transaction evaluation including the ledger append",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		Overrides: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_overrides_total",
			Help: "Total override submissions by outcome",
		}, []string{"outcome"}),

		LedgerAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "efrn_ledger_appends_total",
			Help: "Total ledger entries appended by status",
		}, []string{"status"}),
	}
}

// IncrementTransaction records a first-run outcome.
func (m *Metrics) IncrementTransaction(status models.FinalStatus) {
	if m != nil {
		m.Transactions.WithLabelValues(status.String()).Inc()
	}
}

// ObserveVerdict records one agent step.
func (m *Metrics) ObserveVerdict(agent models.Agent, status models.StepStatus) {
	if m != nil {
		m.AgentVerdicts.WithLabelValues(agent.String(), status.String()).Inc()
	}
}

// ObservePipelineDuration records a first-run duration.
func (m *Metrics) ObservePipelineDuration(d time.Duration) {
	if m != nil {
		m.PipelineDuration.Observe(d.Seconds())
	}
}

// IncrementOverride records an override outcome.
func (m *Metrics) IncrementOverride(outcome string) {
	if m != nil {
		m.Overrides.WithLabelValues(outcome).Inc()
	}
}

// IncrementAppends records a ledger append.
func (m *Metrics) IncrementAppends(status string) {
	if m != nil {
		m.LedgerAppends.WithLabelValues(status).Inc()
	}
}
