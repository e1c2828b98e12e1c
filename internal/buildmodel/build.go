// Package buildmodel defines the canonical Build record shared by every
// collector, the build repository, the filter engine, and the observers.
package buildmodel

import (
	"hash/fnv"
)

// Build is the canonical, provider-agnostic representation of a single
// build or deployment execution. Collectors translate their native
// payloads into this shape; nothing downstream of a collector ever sees
// a provider-specific type again.
type Build struct {
	// ID is a fingerprint of (Provider, Origin, ProjectID, DefinitionID,
	// Branch, BuildID) that identifies this specific build instance.
	ID uint64 `json:"id"`
	// Partition is a fingerprint of (Provider, Origin, ProjectID,
	// DefinitionID, Branch) that identifies the lane this build belongs
	// to: successive builds on the same branch of the same definition
	// share a Partition.
	Partition uint64 `json:"partition"`

	BuildID        string   `json:"build_id"`
	Provider       Provider `json:"provider"`
	Origin         string   `json:"origin"`
	Collector      string   `json:"collector"`
	ProjectID      string   `json:"project_id"`
	ProjectName    string   `json:"project_name"`
	DefinitionID   string   `json:"definition_id"`
	DefinitionName string   `json:"definition_name"`
	BuildNumber    string   `json:"build_number"`
	Status         Status   `json:"status"`
	Branch         string   `json:"branch"`
	URL            string   `json:"url"`
	StartedAt      int64    `json:"started_at"`
	FinishedAt     *int64   `json:"finished_at,omitempty"`
}

// fingerprint computes one identity hash over fields. NewBuild calls it
// twice (once for Partition, once for ID), so every Build value in the
// system already carries correct, immutable identity hashes.
//
// The hash function is hash/fnv's 64-bit FNV-1a: deterministic within
// (and across) processes for identical input, not required to be
// cryptographically secure. Fields are separated by a NUL byte so that,
// e.g., ("ab", "c") and ("a", "bc") never collide.
func fingerprint(fields ...string) uint64 {
	h := fnv.New64a()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	return h.Sum64()
}

// NewBuild constructs a Build with its ID and Partition fingerprints
// computed from the fields spec §3 names, in the fixed order it
// specifies. Per the resolution of the Open Question in spec §9, the
// fingerprints hash Origin rather than Collector, so renaming a
// collector instance in configuration does not change the identity of
// the builds it has already reported.
func NewBuild(
	buildID string,
	provider Provider,
	origin string,
	collector string,
	projectID string,
	projectName string,
	definitionID string,
	definitionName string,
	buildNumber string,
	status Status,
	branch string,
	url string,
	startedAt int64,
	finishedAt *int64,
) Build {
	partition := fingerprint(provider.String(), origin, projectID, definitionID, branch)
	id := fingerprint(provider.String(), origin, projectID, definitionID, branch, buildID)

	return Build{
		ID:             id,
		Partition:      partition,
		BuildID:        buildID,
		Provider:       provider,
		Origin:         origin,
		Collector:      collector,
		ProjectID:      projectID,
		ProjectName:    projectName,
		DefinitionID:   definitionID,
		DefinitionName: definitionName,
		BuildNumber:    buildNumber,
		Status:         status,
		Branch:         branch,
		URL:            url,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}
}

// CollectorKey identifies the upstream record a Build replaces: a
// provider collector never reports two builds sharing this tuple as
// distinct current records.
type CollectorKey struct {
	Collector    string
	ProjectID    string
	DefinitionID string
	BuildID      string
}

// Key returns the replace-key used by BuildRepository.update.
func (b Build) Key() CollectorKey {
	return CollectorKey{
		Collector:    b.Collector,
		ProjectID:    b.ProjectID,
		DefinitionID: b.DefinitionID,
		BuildID:      b.BuildID,
	}
}
