// Package latch implements the one-shot "switch" described in spec
// §4.9: a tiny piece of state used to suppress repeated logging of the
// same condition. It is not safe for concurrent use by design — each
// instance is owned exclusively by the single component (a collector, a
// watcher) that flips it.
package latch

// Switch is turned on the first time a condition is observed, and
// turned off again once the condition clears, so a caller can log a
// transition exactly once instead of on every poll.
type Switch struct {
	on bool
}

// TurnOn sets the switch on.
func (s *Switch) TurnOn() { s.on = true }

// TurnOff sets the switch off.
func (s *Switch) TurnOff() { s.on = false }

// IsOn reports whether the switch is currently on.
func (s *Switch) IsOn() bool { return s.on }

// IsOff reports whether the switch is currently off.
func (s *Switch) IsOff() bool { return !s.on }
