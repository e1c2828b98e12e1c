package engine

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
	"github.com/duckhq/duckwatch/internal/repository"
)

// scopedObserver pairs a constructed Observer with the last status
// recorded for its collector scope (the scope itself comes from the
// observer's Info().Collectors).
type scopedObserver struct {
	obs          observer.Observer
	lastStatus   buildmodel.Status
	everRecorded bool
}

// Aggregator is the engine's downstream worker: it consumes
// accumulator events, tracks overall and per-observer-scoped status
// transitions, and dispatches observations to the observer list.
type Aggregator struct {
	updates <-chan config.ConfigurationUpdated
	events  <-chan Event
	builds  *repository.BuildRepository
	client  httpclient.Client
	log     logrus.FieldLogger

	observers   []*scopedObserver
	static      []observer.Observer
	lastOverall buildmodel.Status
	haveOverall bool
}

// NewAggregator returns an Aggregator subscribed to updates and
// reading events from the accumulator. static observers (e.g. the
// live-dashboard StreamObserver) are not part of the configuration
// document and survive every config reload unconditionally.
func NewAggregator(updates <-chan config.ConfigurationUpdated, events <-chan Event, builds *repository.BuildRepository, client httpclient.Client, static []observer.Observer, log logrus.FieldLogger) *Aggregator {
	g := &Aggregator{
		updates: updates,
		events:  events,
		builds:  builds,
		client:  client,
		static:  static,
		log:     log.WithField("component", "aggregator"),
	}
	for _, o := range static {
		g.observers = append(g.observers, &scopedObserver{obs: o})
	}
	return g
}

// Run blocks, consuming events, until a ShuttingDown event is received
// or the events channel closes.
func (g *Aggregator) Run(barrier *sync.WaitGroup) {
	barrier.Done()
	barrier.Wait()

	for {
		g.drainUpdates()

		event, ok := <-g.events
		if !ok {
			return
		}

		switch event.Kind {
		case EventBuildUpdated:
			g.handleBuildUpdated(event.Build)
		case EventAbsoluteStatusChanged:
			g.dispatch(observer.BuildUpdated(event.Build))
			g.dispatch(observer.AbsoluteStatusChanged(event.Build))
		case EventShuttingDown:
			g.dispatch(observer.ShuttingDown())
			return
		}
	}
}

func (g *Aggregator) drainUpdates() {
	for {
		select {
		case update, ok := <-g.updates:
			if !ok {
				return
			}
			g.applyConfig(update.Document)
		default:
			return
		}
	}
}

func (g *Aggregator) applyConfig(doc config.Document) {
	built := buildObservers(doc, g.client, g.log)
	observers := make([]*scopedObserver, 0, len(built)+len(g.static))
	for _, o := range g.static {
		observers = append(observers, &scopedObserver{obs: o})
	}
	for _, o := range built {
		observers = append(observers, &scopedObserver{obs: o})
	}
	g.observers = observers
}

func (g *Aggregator) handleBuildUpdated(b buildmodel.Build) {
	overall := g.builds.CurrentStatus()
	if !g.haveOverall || overall != g.lastOverall {
		g.lastOverall = overall
		g.haveOverall = true
		for _, so := range g.observers {
			if so.obs.Info().Collectors == nil {
				g.deliver(so, observer.DuckStatusChanged(overall))
			}
		}
	}

	for _, so := range g.observers {
		scope := so.obs.Info().Collectors
		if scope == nil {
			continue
		}
		scoped := g.builds.CurrentStatusForCollectors(scope)
		if scoped.IsAbsolute() && (!so.everRecorded || scoped != so.lastStatus) {
			so.lastStatus = scoped
			so.everRecorded = true
			g.deliver(so, observer.DuckStatusChanged(scoped))
		}
	}

	g.dispatch(observer.BuildUpdated(b))
}

// dispatch delivers ob to every observer, applying origin/scope
// filtering per spec §4.5.
func (g *Aggregator) dispatch(ob observer.Observation) {
	for _, so := range g.observers {
		g.deliver(so, ob)
	}
}

func (g *Aggregator) deliver(so *scopedObserver, ob observer.Observation) {
	info := so.obs.Info()
	if !info.Enabled {
		return
	}
	if !info.InScope(ob.Origin) {
		return
	}
	if err := so.obs.Observe(ob); err != nil {
		g.log.WithError(err).WithField("observer", info.ID).Warn("observer returned an error")
	}
}
