package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/bus"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/latch"
)

// State names a node of the watcher state machine spec §4.6 draws:
// Started -> Loaded -> Loaded, with three distinct error states.
type State int

const (
	StateStarted State = iota
	StateLoaded
	StateErrorNotFound
	StateErrorLoad
	StateErrorCheck
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateErrorNotFound:
		return "error(not_found)"
	case StateErrorLoad:
		return "error(load)"
	case StateErrorCheck:
		return "error(check)"
	default:
		return "started"
	}
}

// DefaultTick is the watcher's default poll interval (spec §4.6, §5).
const DefaultTick = 5 * time.Second

// ConfigurationUpdated is published on the bus whenever the watcher
// successfully loads a changed document.
type ConfigurationUpdated struct {
	Document Document
}

// Watcher polls a Loader on a fixed tick and publishes
// ConfigurationUpdated on Bus whenever a changed document loads
// successfully, per spec §4.6/§4.7.
type Watcher struct {
	loader *Loader
	bus    *bus.Bus[ConfigurationUpdated]
	log    logrus.FieldLogger
	tick   time.Duration

	state State
}

// NewWatcher returns a Watcher over loader, publishing updates on b. A
// zero tick uses DefaultTick.
func NewWatcher(loader *Loader, b *bus.Bus[ConfigurationUpdated], tick time.Duration, log logrus.FieldLogger) *Watcher {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Watcher{loader: loader, bus: b, tick: tick, log: log.WithField("component", "config-watcher"), state: StateStarted}
}

// State reports the watcher's current state-machine node.
func (w *Watcher) State() State { return w.state }

// Run blocks, polling on w.tick, until stop fires.
func (w *Watcher) Run(stop *latch.StopSignal) {
	w.RunWithWake(stop, nil)
}

// RunWithWake is Run, but an extra poll is triggered immediately
// whenever wake fires, instead of waiting for the next tick. wake can
// be fed by filewatch.Notifier; Engine.Run calls Run, which passes a
// nil wake channel and relies solely on the tick.
func (w *Watcher) RunWithWake(stop *latch.StopSignal, wake <-chan struct{}) {
	for {
		w.pollOnce()
		if wake == nil {
			if stop.Wait(w.tick) {
				return
			}
			continue
		}
		select {
		case <-stop.Done():
			return
		case <-time.After(w.tick):
		case <-wake:
		}
	}
}

// pollOnce performs one check-and-maybe-load cycle, applying the
// transition table and the "don't re-log the same error twice" rule.
func (w *Watcher) pollOnce() {
	changed, err := w.loader.HasChanged()
	if err != nil {
		w.transition(classifyCheckError(err))
		return
	}
	if !changed {
		return
	}

	doc, err := w.loader.Load()
	if err != nil {
		w.transition(classifyLoadError(err))
		return
	}

	w.transition(StateLoaded)
	w.bus.Publish(ConfigurationUpdated{Document: doc})
}

func classifyCheckError(err error) State {
	if isNotFound(err) {
		return StateErrorNotFound
	}
	return StateErrorCheck
}

func classifyLoadError(err error) State {
	if isNotFound(err) {
		return StateErrorNotFound
	}
	return StateErrorLoad
}

func isNotFound(err error) bool {
	return errors.Is(err, duckerr.ErrConfigNotFound)
}

func (w *Watcher) transition(next State) {
	repeat := next == w.state && isErrorState(next)
	w.state = next
	if isErrorState(next) {
		if !repeat {
			w.log.WithField("state", next.String()).Warn("configuration watcher entered an error state")
		}
		return
	}
	w.log.WithField("state", next.String()).Debug("configuration watcher state transition")
}

func isErrorState(s State) bool {
	return s == StateErrorNotFound || s == StateErrorLoad || s == StateErrorCheck
}
