package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	passes     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	operations *prometheus.CounterVec
	ledger     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keen_iprules",
			Name:      "passes_total",
			Help:      "Number of reconciliation passes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keen_iprules",
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keen_iprules",
			Name:      "store_operations_total",
			Help:      "Filter store changes made by the engine, by operation and outcome.",
		}, []string{"op", "outcome"}),
		ledger: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "keen_iprules",
			Name:      "ledger_rules",
			Help:      "Number of rule names in the ownership ledger.",
		}, []string{"set"}),
	}

	if reg != nil {
		reg.MustRegister(m.passes, m.duration, m.operations, m.ledger)
	}
	return m
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns collectors registered with the default Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) observePass(kind string, start time.Time, res *Result, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil && res == nil:
		outcome = "error"
	case err != nil:
		outcome = "partial"
	}
	m.passes.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if res == nil {
		return
	}
	add := func(op Operation, n int) {
		if n > 0 {
			m.operations.WithLabelValues(string(op), "success").Add(float64(n))
		}
	}
	add(OpAdd, len(res.Created))
	add(OpRemove, len(res.Deleted))
	add(OpDisable, len(res.Disabled))
	add(OpEnable, len(res.Enabled))
	for _, f := range res.Failures {
		m.operations.WithLabelValues(string(f.Op), "failure").Inc()
	}
}

func (m *Metrics) observeLedger(l *Ledger) {
	if m == nil {
		return
	}
	m.ledger.WithLabelValues("created").Set(float64(l.Created.Len()))
	m.ledger.WithLabelValues("disabled").Set(float64(l.Disabled.Len()))
}
