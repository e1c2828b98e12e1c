// Package repository holds the concurrent in-memory stores the engine's
// accumulator writes to and the aggregator and HTTP surface read from:
// the current build fleet (BuildRepository) and the named view
// definitions (ViewRepository).
package repository

import (
	"sync"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/filter"
)

// UpdateResult classifies the effect repository.Update had.
type UpdateResult int

const (
	// Unchanged means the repository already held an identical record
	// (same id, build number and status); nothing was mutated.
	Unchanged UpdateResult = iota
	// Added means no prior record shared the build's partition.
	Added
	// Updated means a prior record in the same partition existed, and
	// this build's status is either non-absolute or matches the last
	// recorded absolute status for the partition.
	Updated
	// AbsoluteStatusChanged means this build's status is absolute
	// (Success or Failed) and differs from the last recorded absolute
	// status for its partition.
	AbsoluteStatusChanged
)

func (r UpdateResult) String() string {
	switch r {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case AbsoluteStatusChanged:
		return "absolute_status_changed"
	default:
		return "unchanged"
	}
}

// CollectorInfo identifies the collector instance a retain_builds call
// should garbage-collect builds for.
type CollectorInfo struct {
	Provider buildmodel.Provider
	ID       string
}

// BuildRepository is the concurrent in-memory store of the fleet's
// current build state: a sequence of current records, one per
// buildmodel.CollectorKey, plus a partition -> last-recorded-status map
// (the first status seen for the partition, then each later absolute
// status). It has a single writer (the engine's accumulator worker) and
// multiple readers (the aggregator and the HTTP surface); all read
// methods return snapshot copies, never internal slices or maps, so
// callers can range over the result without holding any lock.
type BuildRepository struct {
	mu               sync.RWMutex
	builds           map[buildmodel.CollectorKey]buildmodel.Build
	partitionStatus  map[uint64]buildmodel.Status
}

// NewBuildRepository returns an empty repository.
func NewBuildRepository() *BuildRepository {
	return &BuildRepository{
		builds:          make(map[buildmodel.CollectorKey]buildmodel.Build),
		partitionStatus: make(map[uint64]buildmodel.Status),
	}
}

// Update applies spec §4.1's classification algorithm and mutates the
// repository accordingly.
func (r *BuildRepository) Update(b buildmodel.Build) UpdateResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := b.Key()
	if existing, ok := r.builds[key]; ok {
		if existing.ID == b.ID && existing.BuildNumber == b.BuildNumber && existing.Status == b.Status {
			return Unchanged
		}
	}

	result := Added
	for _, existing := range r.builds {
		if existing.Partition == b.Partition {
			result = Updated
			break
		}
	}

	if stored, ok := r.partitionStatus[b.Partition]; !ok {
		r.partitionStatus[b.Partition] = b.Status
	} else if b.Status.IsAbsolute() && stored != b.Status {
		r.partitionStatus[b.Partition] = b.Status
		result = AbsoluteStatusChanged
	}

	r.builds[key] = b
	return result
}

// RetainBuilds drops every record belonging to the named collector
// instance whose fingerprint is not in ids, then prunes any partition
// status entries that no longer have a backing record. This is how a
// collector's disappeared upstream builds are garbage-collected. ids
// holds buildmodel.Build.ID fingerprints, not the provider-local
// BuildID string, since the same raw upstream build id can legitimately
// recur across distinct partitions (different branches or definitions)
// within one collector.
func (r *BuildRepository) RetainBuilds(info CollectorInfo, ids map[uint64]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, b := range r.builds {
		if b.Provider == info.Provider && b.Collector == info.ID {
			if _, keep := ids[b.ID]; !keep {
				delete(r.builds, key)
			}
		}
	}

	live := make(map[uint64]struct{}, len(r.builds))
	for _, b := range r.builds {
		live[b.Partition] = struct{}{}
	}
	for partition := range r.partitionStatus {
		if _, ok := live[partition]; !ok {
			delete(r.partitionStatus, partition)
		}
	}
}

// All returns a snapshot of every current build.
func (r *BuildRepository) All() []buildmodel.Build {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]buildmodel.Build, 0, len(r.builds))
	for _, b := range r.builds {
		out = append(out, b)
	}
	return out
}

// ForCollectors returns the snapshot of builds whose Collector is a
// member of the given set.
func (r *BuildRepository) ForCollectors(collectors map[string]struct{}) []buildmodel.Build {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]buildmodel.Build, 0)
	for _, b := range r.builds {
		if _, ok := collectors[b.Collector]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ForView returns the builds whose Collector belongs to the named
// view's collector set, additionally narrowed by the view's filter
// expression if one is configured. The second return value is false if
// the view id is unknown. A build the filter expression fails to
// evaluate is excluded rather than silently retained.
func ForView(br *BuildRepository, vr *ViewRepository, viewID string) ([]buildmodel.Build, bool) {
	view, ok := vr.GetView(viewID)
	if !ok {
		return nil, false
	}

	candidates := br.ForCollectors(view.Collectors)
	if view.Filter == nil {
		return candidates, true
	}

	out := make([]buildmodel.Build, 0, len(candidates))
	for _, b := range candidates {
		result, err := view.Filter.Evaluate(b)
		if err == nil && result == filter.Retain {
			out = append(out, b)
		}
	}
	return out, true
}

// CurrentStatus computes the repository-wide overall status per spec
// §4.1: Running beats Failed beats Success; an empty repository is
// Unknown.
func (r *BuildRepository) CurrentStatus() buildmodel.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return overallStatus(r.builds)
}

// CurrentStatusForCollectors is CurrentStatus restricted to builds whose
// Collector is a member of collectors.
func (r *BuildRepository) CurrentStatusForCollectors(collectors map[string]struct{}) buildmodel.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make(map[buildmodel.CollectorKey]buildmodel.Build)
	for key, b := range r.builds {
		if _, ok := collectors[b.Collector]; ok {
			filtered[key] = b
		}
	}
	return overallStatus(filtered)
}

func overallStatus(builds map[buildmodel.CollectorKey]buildmodel.Build) buildmodel.Status {
	if len(builds) == 0 {
		return buildmodel.StatusUnknown
	}

	sawFailed := false
	for _, b := range builds {
		if b.Status == buildmodel.StatusRunning {
			return buildmodel.StatusRunning
		}
		if b.Status == buildmodel.StatusFailed {
			sawFailed = true
		}
	}
	if sawFailed {
		return buildmodel.StatusFailed
	}
	return buildmodel.StatusSuccess
}
