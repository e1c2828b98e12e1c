package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/latch"
	"github.com/duckhq/duckwatch/internal/repository"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type fakeCollector struct {
	info   collector.Info
	builds []buildmodel.Build
	err    error
}

func (f *fakeCollector) Info() collector.Info { return f.info }

func (f *fakeCollector) Collect(_ context.Context, _ *latch.StopSignal, emit collector.Emit) error {
	for _, b := range f.builds {
		emit(b)
	}
	return f.err
}

func newMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func TestAccumulatorRunEmitsBuildUpdatedOnFirstSighting(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event, 4)
	updates := make(chan config.ConfigurationUpdated, 1)

	acc := NewAccumulator(updates, events, builds, nil, newMetrics(), testLogger())

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "tc-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test", 0, nil)
	fc := &fakeCollector{info: collector.Info{ID: "tc-main", Enabled: true, Provider: buildmodel.ProviderTeamCity}, builds: []buildmodel.Build{b}}

	stop := latch.NewStopSignal()
	var barrier sync.WaitGroup
	barrier.Add(1)

	acc.collectors = []collector.Collector{fc}
	acc.interval = time.Hour

	done := make(chan struct{})
	go func() {
		acc.Run(stop, &barrier)
		close(done)
	}()

	select {
	case e := <-events:
		if e.Kind != EventBuildUpdated {
			t.Fatalf("expected EventBuildUpdated, got %v", e.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a BuildUpdated event")
	}

	stop.Signal()
	select {
	case e := <-events:
		if e.Kind != EventShuttingDown {
			t.Fatalf("expected EventShuttingDown, got %v", e.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a ShuttingDown event on stop")
	}

	<-done
}

func TestAccumulatorRetainBuildsByFingerprintNotRawBuildID(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event, 8)
	updates := make(chan config.ConfigurationUpdated)

	acc := NewAccumulator(updates, events, builds, nil, newMetrics(), testLogger())

	// Same raw upstream build id ("7") on two distinct definitions
	// (partitions). A retain pass that only saw "7" must not let the
	// second partition's stale record survive just because the first
	// partition re-emitted a same-named build id this cycle.
	mainBranch := buildmodel.NewBuild("7", buildmodel.ProviderTeamCity, "origin", "tc-main", "proj", "Proj", "defA", "Def", "1", buildmodel.StatusSuccess, "main", "u", 0, nil)
	otherBranch := buildmodel.NewBuild("7", buildmodel.ProviderTeamCity, "origin", "tc-main", "proj", "Proj", "defB", "Def", "1", buildmodel.StatusSuccess, "main", "u", 0, nil)

	builds.Update(mainBranch)
	builds.Update(otherBranch)

	fc := &fakeCollector{
		info:   collector.Info{ID: "tc-main", Enabled: true, Provider: buildmodel.ProviderTeamCity},
		builds: []buildmodel.Build{mainBranch},
	}
	stop := latch.NewStopSignal()
	acc.collectOne(stop, fc)

	all := builds.All()
	if len(all) != 1 {
		t.Fatalf("expected retain to drop the unreported partition's record, got %d remaining", len(all))
	}
	if all[0].ID != mainBranch.ID {
		t.Fatalf("expected the reported build's fingerprint to survive retain, got %d", all[0].ID)
	}
}

func TestAccumulatorRecordsCollectorErrorsInMetrics(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event, 4)
	updates := make(chan config.ConfigurationUpdated)

	metrics := newMetrics()
	acc := NewAccumulator(updates, events, builds, nil, metrics, testLogger())

	fc := &fakeCollector{info: collector.Info{ID: "tc-main", Enabled: true, Provider: buildmodel.ProviderTeamCity}, err: context.DeadlineExceeded}
	stop := latch.NewStopSignal()

	acc.collectOne(stop, fc)

	if got := testutil.ToFloat64(metrics.CollectorErrors.WithLabelValues("tc-main")); got != 1 {
		t.Fatalf("expected one collector error recorded, got %v", got)
	}
}
