package engine

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/bus"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
	"github.com/duckhq/duckwatch/internal/observer"
	"github.com/duckhq/duckwatch/internal/repository"
)

// Engine wires the watcher, accumulator and aggregator around a shared
// stop signal, configuration bus and accumulator->aggregator channel,
// per spec §4.7.
type Engine struct {
	Builds *repository.BuildRepository
	Views  *repository.ViewRepository

	watcher     *config.Watcher
	accumulator *Accumulator
	aggregator  *Aggregator
	stop        *latch.StopSignal
	log         logrus.FieldLogger

	title   sync.Mutex
	curTitle string
}

// New constructs an Engine reading configuration from loader, sharing
// client across every collector/observer, and exposing its counters
// through metrics.
func New(loader *config.Loader, client httpclient.Client, metrics *Metrics, staticObservers []observer.Observer, log logrus.FieldLogger) *Engine {
	configBus := bus.New[config.ConfigurationUpdated]()
	events := make(chan Event)

	builds := repository.NewBuildRepository()
	views := repository.NewViewRepository()

	e := &Engine{
		Builds: builds,
		Views:  views,
		stop:   latch.NewStopSignal(),
		log:    log.WithField("component", "engine"),
	}

	e.watcher = config.NewWatcher(loader, configBus, config.DefaultTick, log)

	accUpdates := configBus.Subscribe()
	aggUpdates := configBus.Subscribe()

	e.accumulator = NewAccumulator(accUpdates, events, builds, client, metrics, log)
	e.aggregator = NewAggregator(aggUpdates, events, builds, client, staticObservers, log)

	// Any loaded configuration also refreshes the view repository and
	// title; the watcher itself only has the raw bus to publish to, so
	// the engine observes its own subscription for that side effect.
	viewUpdates := configBus.Subscribe()
	go e.watchViews(viewUpdates)

	return e
}

// Stop returns the engine's shared stop signal.
func (e *Engine) Stop() *latch.StopSignal { return e.stop }

// Title returns the most recently loaded configuration's title.
func (e *Engine) Title() string {
	e.title.Lock()
	defer e.title.Unlock()
	return e.curTitle
}

func (e *Engine) watchViews(updates <-chan config.ConfigurationUpdated) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			e.Views.Set(buildViews(update.Document))
			e.title.Lock()
			e.curTitle = update.Document.Title
			e.title.Unlock()
		case <-e.stop.Done():
			return
		}
	}
}

// Run starts all three workers and blocks until they have joined
// following a call to Shutdown. The three-party rendezvous barrier (spec
// §4.7) ensures no worker begins its first duty cycle before all three
// have registered their bus subscriptions.
func (e *Engine) Run() {
	var barrier sync.WaitGroup
	barrier.Add(3)

	var workers sync.WaitGroup
	workers.Add(3)

	go func() {
		defer workers.Done()
		// The watcher has no subscription of its own to register (it is
		// the bus's sole publisher); it still joins the rendezvous so
		// all three workers start their first duty cycle together.
		barrier.Done()
		barrier.Wait()
		e.watcher.Run(e.stop)
	}()
	go func() {
		defer workers.Done()
		e.accumulator.Run(e.stop, &barrier)
	}()
	go func() {
		defer workers.Done()
		e.aggregator.Run(&barrier)
	}()

	workers.Wait()
}

// Shutdown signals every worker to stop. It returns immediately; Run
// returns once the workers have finished their current cycle and
// joined.
func (e *Engine) Shutdown() {
	e.stop.Signal()
}
