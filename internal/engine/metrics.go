package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the operational counters SUPPLEMENTED from
// original_source's duck_server engine variant (builds seen, absolute
// changes fired, collector error counts), exposed via the admin
// server's /metrics endpoint.
type Metrics struct {
	BuildsSeen      prometheus.Counter
	AbsoluteChanges prometheus.Counter
	CollectorErrors *prometheus.CounterVec
}

// NewMetrics constructs and registers the engine's counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duckwatch",
			Subsystem: "engine",
			Name:      "builds_seen_total",
			Help:      "Total number of build records emitted by collectors across all cycles.",
		}),
		AbsoluteChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duckwatch",
			Subsystem: "engine",
			Name:      "absolute_status_changes_total",
			Help:      "Total number of AbsoluteStatusChanged transitions detected.",
		}),
		CollectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duckwatch",
			Subsystem: "engine",
			Name:      "collector_errors_total",
			Help:      "Total number of collector cycle errors, by collector id.",
		}, []string{"collector"}),
	}
	reg.MustRegister(m.BuildsSeen, m.AbsoluteChanges, m.CollectorErrors)
	return m
}
