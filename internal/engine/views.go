package engine

import (
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/filter"
	"github.com/duckhq/duckwatch/internal/repository"
)

// buildViews trusts that config.validate has already rejected any
// malformed view filter expression, so filter.New is not expected to
// fail here; a view whose filter still fails to compile is built
// without one rather than dropped.
func buildViews(doc config.Document) []repository.View {
	out := make([]repository.View, 0, len(doc.Views))
	for _, v := range doc.Views {
		collectors := make(map[string]struct{}, len(v.Collectors))
		for _, c := range v.Collectors {
			collectors[c] = struct{}{}
		}

		view := repository.View{ID: v.ID, DisplayName: v.Name, Collectors: collectors}
		if v.Filter != "" {
			if f, err := filter.New(v.Filter); err == nil {
				view.Filter = f
			}
		}
		out = append(out, view)
	}
	return out
}
