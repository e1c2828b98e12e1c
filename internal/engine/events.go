// Package engine wires the three cooperating workers spec §4.7
// describes — watcher, accumulator, aggregator — around the
// configuration bus and the accumulator-to-aggregator event channel.
package engine

import "github.com/duckhq/duckwatch/internal/buildmodel"

// EventKind tags which variant an Event on the accumulator->aggregator
// channel carries.
type EventKind int

const (
	EventBuildUpdated EventKind = iota
	EventAbsoluteStatusChanged
	EventShuttingDown
)

// Event is one of BuildUpdated | AbsoluteStatusChanged | ShuttingDown,
// per spec §4.7.
type Event struct {
	Kind  EventKind
	Build buildmodel.Build
}
