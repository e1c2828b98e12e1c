package buildmodel

import (
	"fmt"
	"strings"
)

// Status is the canonical build/deployment status. The zero value is
// StatusUnknown.
type Status int

const (
	StatusUnknown Status = iota
	StatusSuccess
	StatusFailed
	StatusRunning
	StatusCanceled
	StatusQueued
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusRunning:
		return "running"
	case StatusCanceled:
		return "canceled"
	case StatusQueued:
		return "queued"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsAbsolute reports whether the status is a terminal, human-relevant
// outcome (Success or Failed). Only transitions into an absolute status
// are candidates for an AbsoluteStatusChanged event.
func (s Status) IsAbsolute() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseStatus parses a status keyword from the filter language or from
// configuration. "cancelled" is accepted as a synonym of "canceled".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "unknown":
		return StatusUnknown, nil
	case "success":
		return StatusSuccess, nil
	case "failed":
		return StatusFailed, nil
	case "running":
		return StatusRunning, nil
	case "canceled", "cancelled":
		return StatusCanceled, nil
	case "queued":
		return StatusQueued, nil
	case "skipped":
		return StatusSkipped, nil
	default:
		return StatusUnknown, fmt.Errorf("unrecognized build status %q", s)
	}
}

// MarshalJSON renders the status using its lower-case name rather than
// its ordinal, so the HTTP surface and logs stay human readable.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts the lower-case name form.
func (s *Status) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Provider tags the CI/CD system a build originated from.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderTeamCity
	ProviderAzureDevOps
	ProviderGitHubActions
	ProviderOctopusDeploy
	ProviderAppVeyor
	ProviderDuck
	ProviderDebugger
)

func (p Provider) String() string {
	switch p {
	case ProviderTeamCity:
		return "teamcity"
	case ProviderAzureDevOps:
		return "azure"
	case ProviderGitHubActions:
		return "github"
	case ProviderOctopusDeploy:
		return "octopus"
	case ProviderAppVeyor:
		return "appveyor"
	case ProviderDuck:
		return "duck"
	case ProviderDebugger:
		return "debugger"
	default:
		return "unknown"
	}
}

func (p Provider) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON accepts the lower-case name form MarshalJSON produces.
func (p *Provider) UnmarshalJSON(data []byte) error {
	str := strings.ToLower(strings.Trim(string(data), `"`))
	for c := ProviderUnknown; c <= ProviderDebugger; c++ {
		if c.String() == str {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unrecognized provider %q", str)
}
