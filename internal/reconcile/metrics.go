package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/tbaudit/internal/audit"
)

// Reconcile outcomes recorded by Metrics.
const (
	resultClean       = "clean"
	resultAnomalies   = "anomalies"
	resultUnavailable = "unavailable"
	resultInvalid     = "invalid"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	itemsTotal        *prometheus.CounterVec
	malformedTotal    *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// reconcileTotal counts reconciliations by outcome
		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbaudit_reconcile_total",
			Help: "Total reconciliations by result",
		}, []string{"result"}),

		// itemsTotal counts classified items by status
		itemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbaudit_reconcile_items_total",
			Help: "Total reconciled items by status",
		}, []string{"status"}),

		// malformedTotal counts isolated malformed records by side
		malformedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbaudit_reconcile_malformed_total",
			Help: "Total malformed records by source",
		}, []string{"side"}),

		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tbaudit_reconcile_duration_seconds",
			Help:    "Reconciliation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
}

func (m *Metrics) observeReport(r *audit.Report, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := resultClean
	if r.HasAnomalies() {
		result = resultAnomalies
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
	for _, item := range r.Items {
		m.itemsTotal.WithLabelValues(string(item.Status)).Inc()
	}
	for _, mr := range r.Malformed {
		m.malformedTotal.WithLabelValues(string(mr.Side)).Inc()
	}
}

func (m *Metrics) observeFailure(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
}
