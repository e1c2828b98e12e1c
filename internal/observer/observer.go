// Package observer defines the uniform contract notification sinks
// implement (spec §4.5): a declared id/enabled flag/optional collector
// scope, and an Observe method fed a stream of Observations.
package observer

import "github.com/duckhq/duckwatch/internal/buildmodel"

// Info describes an observer instance.
type Info struct {
	ID         string
	Enabled    bool
	Collectors map[string]struct{} // nil means "no scope": receives everything
}

// InScope reports whether origin passes this observer's collector
// scope. System-origin observations always pass; Collector-origin
// observations pass only when the observer has no declared scope, or
// the originating collector is a member of it.
func (i Info) InScope(origin Origin) bool {
	if origin.Kind == OriginSystem {
		return true
	}
	if i.Collectors == nil {
		return true
	}
	_, ok := i.Collectors[origin.CollectorID]
	return ok
}

// OriginKind tags where an Observation came from.
type OriginKind int

const (
	OriginSystem OriginKind = iota
	OriginCollector
)

// Origin identifies the source of an Observation for scope filtering.
type Origin struct {
	Kind        OriginKind
	CollectorID string
}

var SystemOrigin = Origin{Kind: OriginSystem}

func CollectorOrigin(id string) Origin { return Origin{Kind: OriginCollector, CollectorID: id} }

// ObservationKind tags which variant an Observation carries.
type ObservationKind int

const (
	KindDuckStatusChanged ObservationKind = iota
	KindBuildUpdated
	KindAbsoluteStatusChanged
	KindShuttingDown
)

// Observation is one of the four variants spec §4.5 names, each
// carrying an Origin used for scope filtering.
type Observation struct {
	Kind   ObservationKind
	Origin Origin
	Status buildmodel.Status // meaningful for KindDuckStatusChanged
	Build  buildmodel.Build  // meaningful for KindBuildUpdated / KindAbsoluteStatusChanged
}

func DuckStatusChanged(status buildmodel.Status) Observation {
	return Observation{Kind: KindDuckStatusChanged, Origin: SystemOrigin, Status: status}
}

func BuildUpdated(b buildmodel.Build) Observation {
	return Observation{Kind: KindBuildUpdated, Origin: CollectorOrigin(b.Collector), Build: b}
}

func AbsoluteStatusChanged(b buildmodel.Build) Observation {
	return Observation{Kind: KindAbsoluteStatusChanged, Origin: CollectorOrigin(b.Collector), Build: b}
}

func ShuttingDown() Observation {
	return Observation{Kind: KindShuttingDown, Origin: SystemOrigin}
}

// Observer reacts to the observation stream the aggregator dispatches,
// typically by sending an outbound notification.
type Observer interface {
	Info() Info
	Observe(o Observation) error
}
