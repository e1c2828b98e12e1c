package repository

import (
	"sync"

	"github.com/duckhq/duckwatch/internal/filter"
)

// View is a named, fixed subset of collector ids used to scope which
// builds a client (or an observer) can see. Filter, when non-nil,
// further restricts membership by evaluating spec §4.3's filter
// expression language against each candidate build.
type View struct {
	ID          string
	DisplayName string
	Collectors  map[string]struct{}
	Filter      *filter.Filter
}

// ViewRepository holds the current set of view definitions. It is
// replaced atomically whenever configuration reloads (single writer:
// the engine's watcher), and read by the aggregator and the HTTP
// surface.
type ViewRepository struct {
	mu    sync.RWMutex
	views []View
}

// NewViewRepository returns an empty view repository.
func NewViewRepository() *ViewRepository {
	return &ViewRepository{}
}

// Set atomically replaces every view definition.
func (r *ViewRepository) Set(views []View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = views
}

// GetCollectors returns the collector set for the named view, and
// whether that view exists.
func (r *ViewRepository) GetCollectors(id string) (map[string]struct{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		if v.ID == id {
			return v.Collectors, true
		}
	}
	return nil, false
}

// GetView returns the named view definition, and whether it exists.
func (r *ViewRepository) GetView(id string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

// GetViews returns a snapshot of every view definition.
func (r *ViewRepository) GetViews() []View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]View, len(r.views))
	copy(out, r.views)
	return out
}

