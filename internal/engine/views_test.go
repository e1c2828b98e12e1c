package engine

import (
	"testing"

	"github.com/duckhq/duckwatch/internal/config"
)

func TestBuildViewsConvertsCollectorSlicesToSets(t *testing.T) {
	doc := config.Document{
		Views: []config.ViewDoc{
			{ID: "main", Name: "Main", Collectors: []string{"tc-main", "azure-main"}},
		},
	}

	views := buildViews(doc)
	if len(views) != 1 {
		t.Fatalf("expected one view, got %d", len(views))
	}
	if views[0].ID != "main" || views[0].DisplayName != "Main" {
		t.Fatalf("unexpected view metadata: %+v", views[0])
	}
	if _, ok := views[0].Collectors["tc-main"]; !ok {
		t.Fatal("expected tc-main to be a member of the view's collector set")
	}
	if _, ok := views[0].Collectors["missing"]; ok {
		t.Fatal("did not expect an unrelated collector id to be a member")
	}
}

func TestBuildViewsHandlesEmptyDocument(t *testing.T) {
	views := buildViews(config.Document{})
	if len(views) != 0 {
		t.Fatalf("expected no views for an empty document, got %d", len(views))
	}
}

func TestBuildViewsCompilesFilterExpression(t *testing.T) {
	doc := config.Document{
		Views: []config.ViewDoc{
			{ID: "main", Name: "Main", Collectors: []string{"tc-main"}, Filter: "branch == 'main'"},
		},
	}

	views := buildViews(doc)
	if len(views) != 1 {
		t.Fatalf("expected one view, got %d", len(views))
	}
	if views[0].Filter == nil {
		t.Fatal("expected a compiled filter for a view with a non-empty filter expression")
	}
}

func TestBuildViewsLeavesFilterNilWhenUnset(t *testing.T) {
	doc := config.Document{
		Views: []config.ViewDoc{{ID: "main", Name: "Main", Collectors: []string{"tc-main"}}},
	}

	views := buildViews(doc)
	if views[0].Filter != nil {
		t.Fatal("expected a nil filter when no filter expression is configured")
	}
}
