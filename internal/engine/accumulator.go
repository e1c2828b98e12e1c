package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
	"github.com/duckhq/duckwatch/internal/repository"
)

// earlyTick is the idle poll interval used before the accumulator has
// seen its first configuration (spec §4.7 step 2).
const earlyTick = 500 * time.Millisecond

// Accumulator is the engine's middle worker: it owns the collector
// list, calls each collector on a duty cycle, updates the shared build
// repository, and forwards change events to the aggregator.
type Accumulator struct {
	updates <-chan config.ConfigurationUpdated
	events  chan<- Event
	builds  *repository.BuildRepository
	client  httpclient.Client
	log     logrus.FieldLogger
	metrics *Metrics

	collectors []collector.Collector
	interval   time.Duration
}

// NewAccumulator returns an Accumulator subscribed to updates,
// forwarding events to the aggregator on events.
func NewAccumulator(updates <-chan config.ConfigurationUpdated, events chan<- Event, builds *repository.BuildRepository, client httpclient.Client, metrics *Metrics, log logrus.FieldLogger) *Accumulator {
	return &Accumulator{
		updates: updates,
		events:  events,
		builds:  builds,
		client:  client,
		metrics: metrics,
		log:     log.WithField("component", "accumulator"),
	}
}

// Run blocks until stop fires, draining configuration updates,
// re-collecting on a duty cycle, and joining once stop fires (emitting
// ShuttingDown to the aggregator first).
func (a *Accumulator) Run(stop *latch.StopSignal, barrier *sync.WaitGroup) {
	barrier.Done()
	barrier.Wait()

	for {
		a.drainUpdates()

		if a.collectors == nil {
			if stop.Wait(earlyTick) {
				a.shutdown()
				return
			}
			continue
		}

		a.runCycle(stop)

		interval := a.interval
		if interval <= 0 {
			interval = config.MinInterval * time.Second
		}
		if stop.Wait(interval) {
			a.shutdown()
			return
		}
	}
}

func (a *Accumulator) drainUpdates() {
	for {
		select {
		case update, ok := <-a.updates:
			if !ok {
				return
			}
			a.applyConfig(update.Document)
		default:
			return
		}
	}
}

func (a *Accumulator) applyConfig(doc config.Document) {
	built := buildCollectors(doc, a.client, a.log)
	a.collectors = built
	a.interval = time.Duration(doc.Interval) * time.Second
}

func (a *Accumulator) runCycle(stop *latch.StopSignal) {
	for _, c := range a.collectors {
		if stop.IsSignaled() {
			return
		}
		a.collectOne(stop, c)
	}
}

func (a *Accumulator) collectOne(stop *latch.StopSignal, c collector.Collector) {
	info := c.Info()
	seen := make(map[uint64]struct{})

	emit := func(b buildmodel.Build) {
		seen[b.ID] = struct{}{}
		a.metrics.BuildsSeen.Inc()

		switch a.builds.Update(b) {
		case repository.Added, repository.Updated:
			a.send(Event{Kind: EventBuildUpdated, Build: b})
		case repository.AbsoluteStatusChanged:
			a.metrics.AbsoluteChanges.Inc()
			a.send(Event{Kind: EventAbsoluteStatusChanged, Build: b})
		}
	}

	ctx, cancel := stop.Context(context.Background())
	defer cancel()
	if err := c.Collect(ctx, stop, emit); err != nil {
		a.metrics.CollectorErrors.WithLabelValues(info.ID).Inc()
		a.log.WithError(err).WithField("collector", info.ID).Warn("collector cycle failed")
	}

	a.builds.RetainBuilds(repository.CollectorInfo{Provider: info.Provider, ID: info.ID}, seen)
}

func (a *Accumulator) send(e Event) {
	select {
	case a.events <- e:
	case <-time.After(5 * time.Second):
		a.log.Warn("aggregator channel send timed out, dropping event")
	}
}

func (a *Accumulator) shutdown() {
	a.send(Event{Kind: EventShuttingDown})
}
