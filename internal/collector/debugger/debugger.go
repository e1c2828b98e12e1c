// Package debugger implements the local-development collector named in
// spec §6: a synthetic build stream with no upstream HTTP dependency,
// for exercising the engine and observers without wiring a real CI
// system.
package debugger

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/latch"
)

// Config is the per-instance configuration for a debugger collector.
type Config struct {
	ID          string `json:"id"`
	Enabled     *bool  `json:"enabled"`
	Definitions int    `json:"definitions"`
	// FlipProbability is the chance, in [0, 1], that a definition's
	// status changes on a given cycle. Zero uses the package default.
	FlipProbability float64 `json:"flipProbability"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }
func (c Config) definitions() int {
	if c.Definitions <= 0 {
		return 3
	}
	return c.Definitions
}
func (c Config) flipProbability() float64 {
	if c.FlipProbability <= 0 {
		return 0.1
	}
	return c.FlipProbability
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("debugger collector: id is required"))
	}
	return nil
}

// Collector emits a small fixed fleet of synthetic builds, one per
// definition, each independently transitioning through Queued ->
// Running -> (Success|Failed) on every Collect call.
type Collector struct {
	cfg   Config
	log   logrus.FieldLogger
	rng   *rand.Rand
	state []debugBuildState
}

type debugBuildState struct {
	buildNumber int
	status      buildmodel.Status
}

func New(cfg Config, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	state := make([]debugBuildState, cfg.definitions())
	for i := range state {
		state[i] = debugBuildState{buildNumber: 1, status: buildmodel.StatusQueued}
	}
	return &Collector{
		cfg:   cfg,
		log:   log.WithField("collector", cfg.ID).WithField("provider", "debugger"),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		state: state,
	}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderDebugger}
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	now := time.Now().Unix()
	for i := range c.state {
		if stop.IsSignaled() {
			return nil
		}
		st := &c.state[i]
		st.status = c.advance(st.status)

		var finished *int64
		if st.status.IsAbsolute() {
			f := now
			finished = &f
		}

		definitionID := fmt.Sprintf("definition-%d", i+1)
		emit(buildmodel.NewBuild(
			fmt.Sprintf("%d", st.buildNumber),
			buildmodel.ProviderDebugger,
			"debugger://local",
			c.cfg.ID,
			"debug-project",
			"Debug Project",
			definitionID,
			definitionID,
			fmt.Sprintf("%d", st.buildNumber),
			st.status,
			"main",
			"debugger://local/build/"+fmt.Sprintf("%d", st.buildNumber),
			now,
			finished,
		))

		if st.status.IsAbsolute() && c.rng.Float64() < c.cfg.flipProbability() {
			st.buildNumber++
			st.status = buildmodel.StatusQueued
		}
	}
	return nil
}

func (c *Collector) advance(current buildmodel.Status) buildmodel.Status {
	switch current {
	case buildmodel.StatusQueued:
		return buildmodel.StatusRunning
	case buildmodel.StatusRunning:
		if c.rng.Float64() < 0.8 {
			return buildmodel.StatusSuccess
		}
		return buildmodel.StatusFailed
	default:
		return current
	}
}
