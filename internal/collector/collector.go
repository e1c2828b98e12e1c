// Package collector defines the uniform contract provider-specific
// pollers implement (spec §4.4). Each provider's HTTP plumbing lives in
// its own sub-package; this package only specifies the shape.
package collector

import (
	"context"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/latch"
)

// Info describes a collector instance, independent of provider-specific
// configuration details.
type Info struct {
	ID       string
	Enabled  bool
	Provider buildmodel.Provider
}

// Emit is called by a Collector once per build it observes during a
// single Collect call.
type Emit func(buildmodel.Build)

// Collector polls one external CI/CD system and emits the builds it
// currently sees. Implementations must check ctx/stop between outbound
// requests and between per-branch or per-definition iterations, and
// should throttle roughly 300ms between successive HTTP calls to the
// same upstream to stay polite (spec §4.4, §5).
type Collector interface {
	Info() Info
	Collect(ctx context.Context, stop *latch.StopSignal, emit Emit) error
}
