package config

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/collector/teamcity"
	"github.com/duckhq/duckwatch/internal/observer/slack"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func validTeamCityDoc(id string) CollectorDoc {
	return CollectorDoc{TeamCity: &teamcity.Config{
		ID:          id,
		ServerURL:   "http://tc.local",
		Guest:       true,
		Definitions: []teamcity.Definition{{ProjectID: "proj", ID: "build"}},
	}}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := Document{
		Title:      "fleet",
		Interval:   MinInterval,
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Views: []ViewDoc{
			{ID: "main", Name: "Main", Collectors: []string{"tc-main"}},
		},
	}
	if err := validate(doc, testLogger()); err != nil {
		t.Fatalf("expected a well formed document to validate, got %v", err)
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("dup"), validTeamCityDoc("dup")},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for a duplicate id across collectors")
	}
}

func TestValidateRejectsIDWithIllegalCharacters(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc main!")},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for an id containing illegal characters")
	}
}

func TestValidateRejectsViewReferencingUnknownCollector(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Views:      []ViewDoc{{ID: "main", Collectors: []string{"missing"}}},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for a view referencing an unknown collector")
	}
}

func TestValidateRejectsObserverReferencingUnknownCollector(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Observers: []ObserverDoc{
			{Slack: &slack.Config{ID: "slack-main", WebhookURL: "http://example.test/hooks/a", Collectors: []string{"missing"}}},
		},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for an observer referencing an unknown collector")
	}
}

func TestValidateWarnsButAllowsEmptyCollectorList(t *testing.T) {
	doc := Document{Title: "fleet"}
	if err := validate(doc, testLogger()); err != nil {
		t.Fatalf("expected an empty collector list to only warn, got %v", err)
	}
}

func TestValidateRejectsViewWithMalformedFilter(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Views: []ViewDoc{
			{ID: "main", Collectors: []string{"tc-main"}, Filter: "branch =="},
		},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for a view with a malformed filter expression")
	}
}

func TestValidateRejectsViewWithNonBooleanFilter(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Views: []ViewDoc{
			{ID: "main", Collectors: []string{"tc-main"}, Filter: "branch"},
		},
	}
	if err := validate(doc, testLogger()); err == nil {
		t.Fatal("expected an error for a view filter that does not evaluate to a boolean")
	}
}

func TestValidateAcceptsViewWithWellFormedFilter(t *testing.T) {
	doc := Document{
		Collectors: []CollectorDoc{validTeamCityDoc("tc-main")},
		Views: []ViewDoc{
			{ID: "main", Collectors: []string{"tc-main"}, Filter: "branch == 'main' AND status != 'failed'"},
		},
	}
	if err := validate(doc, testLogger()); err != nil {
		t.Fatalf("expected a well formed view filter to validate, got %v", err)
	}
}

func TestValidateWarnsOnObserverScopedToDisabledCollector(t *testing.T) {
	disabled := false
	tc := validTeamCityDoc("tc-main")
	tc.TeamCity.Enabled = &disabled

	doc := Document{
		Collectors: []CollectorDoc{tc},
		Observers: []ObserverDoc{
			{Slack: &slack.Config{ID: "slack-main", WebhookURL: "http://example.test/hooks/a", Collectors: []string{"tc-main"}}},
		},
	}
	if err := validate(doc, testLogger()); err != nil {
		t.Fatalf("expected a disabled-collector reference to only warn, got %v", err)
	}
}
