package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.BuildsSeen.Inc()
	m.AbsoluteChanges.Inc()
	m.CollectorErrors.WithLabelValues("tc-main").Inc()

	if got := testutil.ToFloat64(m.BuildsSeen); got != 1 {
		t.Fatalf("expected BuildsSeen=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.AbsoluteChanges); got != 1 {
		t.Fatalf("expected AbsoluteChanges=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.CollectorErrors.WithLabelValues("tc-main")); got != 1 {
		t.Fatalf("expected CollectorErrors{tc-main}=1, got %v", got)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected three registered metric families worth of samples, got %d", count)
	}
}
