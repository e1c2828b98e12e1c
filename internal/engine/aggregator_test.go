package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/observer"
	"github.com/duckhq/duckwatch/internal/repository"
)

type fakeObserver struct {
	info observer.Info
	mu   sync.Mutex
	got  []observer.Observation
}

func (f *fakeObserver) Info() observer.Info { return f.info }

func (f *fakeObserver) Observe(ob observer.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ob)
	return nil
}

func (f *fakeObserver) observations() []observer.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]observer.Observation, len(f.got))
	copy(out, f.got)
	return out
}

func runAggregator(t *testing.T, g *Aggregator) chan struct{} {
	t.Helper()
	var barrier sync.WaitGroup
	barrier.Add(1)
	done := make(chan struct{})
	go func() {
		g.Run(&barrier)
		close(done)
	}()
	return done
}

func TestAggregatorDispatchesDuckStatusChangedOnOverallTransition(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event)
	updates := make(chan config.ConfigurationUpdated)
	static := &fakeObserver{info: observer.Info{ID: "static", Enabled: true}}

	g := NewAggregator(updates, events, builds, nil, []observer.Observer{static}, testLogger())
	done := runAggregator(t, g)

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "tc-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test", 0, nil)
	builds.Update(b)
	events <- Event{Kind: EventBuildUpdated, Build: b}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(static.observations()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	obs := static.observations()
	if len(obs) < 2 {
		t.Fatalf("expected at least a DuckStatusChanged and BuildUpdated observation, got %d", len(obs))
	}
	if obs[0].Kind != observer.KindDuckStatusChanged {
		t.Fatalf("expected the first observation to be DuckStatusChanged, got %v", obs[0].Kind)
	}

	close(events)
	<-done
}

func TestAggregatorFiltersScopedObserverByCollectorOrigin(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event)
	updates := make(chan config.ConfigurationUpdated)
	scoped := &fakeObserver{info: observer.Info{ID: "scoped", Enabled: true, Collectors: map[string]struct{}{"tc-main": {}}}}

	g := NewAggregator(updates, events, builds, nil, []observer.Observer{scoped}, testLogger())
	done := runAggregator(t, g)

	other := buildmodel.NewBuild("1", buildmodel.ProviderAzureDevOps, "origin", "azure-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test", 0, nil)
	builds.Update(other)
	events <- Event{Kind: EventBuildUpdated, Build: other}

	time.Sleep(100 * time.Millisecond)
	for _, ob := range scoped.observations() {
		if ob.Kind == observer.KindBuildUpdated && ob.Origin.CollectorID != "tc-main" && ob.Origin.CollectorID == "azure-main" {
			t.Fatalf("scoped observer received a BuildUpdated from outside its scope: %+v", ob)
		}
	}

	close(events)
	<-done
}

func TestAggregatorDispatchesShuttingDownAndReturns(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event)
	updates := make(chan config.ConfigurationUpdated)
	static := &fakeObserver{info: observer.Info{ID: "static", Enabled: true}}

	g := NewAggregator(updates, events, builds, nil, []observer.Observer{static}, testLogger())
	done := runAggregator(t, g)

	events <- Event{Kind: EventShuttingDown}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after a ShuttingDown event")
	}

	obs := static.observations()
	if len(obs) == 0 || obs[len(obs)-1].Kind != observer.KindShuttingDown {
		t.Fatalf("expected the last dispatched observation to be ShuttingDown, got %+v", obs)
	}
}

func TestAggregatorSkipsDisabledObserver(t *testing.T) {
	builds := repository.NewBuildRepository()
	events := make(chan Event)
	updates := make(chan config.ConfigurationUpdated)
	disabled := &fakeObserver{info: observer.Info{ID: "disabled", Enabled: false}}

	g := NewAggregator(updates, events, builds, nil, []observer.Observer{disabled}, testLogger())
	done := runAggregator(t, g)

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "tc-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test", 0, nil)
	builds.Update(b)
	events <- Event{Kind: EventBuildUpdated, Build: b}

	time.Sleep(100 * time.Millisecond)
	if len(disabled.observations()) != 0 {
		t.Fatal("expected a disabled observer to receive nothing")
	}

	close(events)
	<-done
}
