// Package config loads, validates and watches the JSON configuration
// document spec §4.6 describes: title, poll interval, views, and the
// tagged collector/observer variants each provider package defines.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/duckhq/duckwatch/internal/collector/appveyor"
	"github.com/duckhq/duckwatch/internal/collector/azure"
	"github.com/duckhq/duckwatch/internal/collector/debugger"
	"github.com/duckhq/duckwatch/internal/collector/duckpeer"
	"github.com/duckhq/duckwatch/internal/collector/github"
	"github.com/duckhq/duckwatch/internal/collector/octopus"
	"github.com/duckhq/duckwatch/internal/collector/teamcity"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/observer/hue"
	"github.com/duckhq/duckwatch/internal/observer/mattermost"
	"github.com/duckhq/duckwatch/internal/observer/slack"
)

// idPattern is the regex every collector/observer id must satisfy,
// per spec §3.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]+$`)

// MinInterval is the floor applied to a configured poll interval
// (spec §3: "poll interval, floored to 15").
const MinInterval = 15

// ViewDoc is a single entry of the document's "views" array. Filter is
// an optional spec §4.3 expression further narrowing which builds the
// view exposes beyond its declared Collectors membership.
type ViewDoc struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Collectors []string `json:"collectors"`
	Filter     string   `json:"filter,omitempty"`
}

// CollectorDoc is one tagged, single-key collector variant. Exactly
// one field is non-nil after unmarshalling.
type CollectorDoc struct {
	TeamCity  *teamcity.Config `json:"teamcity,omitempty"`
	Azure     *azure.Config    `json:"azure,omitempty"`
	GitHub    *github.Config   `json:"github,omitempty"`
	Octopus   *octopus.Config  `json:"octopus,omitempty"`
	AppVeyor  *appveyor.Config `json:"appveyor,omitempty"`
	Duck      *duckpeer.Config `json:"duck,omitempty"`
	Debugger  *debugger.Config `json:"debugger,omitempty"`
}

// ID returns the id and provider tag of whichever variant is set.
func (d CollectorDoc) ID() (id string, provider string, ok bool) {
	switch {
	case d.TeamCity != nil:
		return d.TeamCity.ID, "teamcity", true
	case d.Azure != nil:
		return d.Azure.ID, "azure", true
	case d.GitHub != nil:
		return d.GitHub.ID, "github", true
	case d.Octopus != nil:
		return d.Octopus.ID, "octopus", true
	case d.AppVeyor != nil:
		return d.AppVeyor.ID, "appveyor", true
	case d.Duck != nil:
		return d.Duck.ID, "duck", true
	case d.Debugger != nil:
		return d.Debugger.ID, "debugger", true
	default:
		return "", "", false
	}
}

func (d CollectorDoc) enabled() bool {
	switch {
	case d.TeamCity != nil:
		return d.TeamCity.Enabled == nil || *d.TeamCity.Enabled
	case d.Azure != nil:
		return d.Azure.Enabled == nil || *d.Azure.Enabled
	case d.GitHub != nil:
		return d.GitHub.Enabled == nil || *d.GitHub.Enabled
	case d.Octopus != nil:
		return d.Octopus.Enabled == nil || *d.Octopus.Enabled
	case d.AppVeyor != nil:
		return d.AppVeyor.Enabled == nil || *d.AppVeyor.Enabled
	case d.Duck != nil:
		return d.Duck.Enabled == nil || *d.Duck.Enabled
	case d.Debugger != nil:
		return d.Debugger.Enabled == nil || *d.Debugger.Enabled
	default:
		return false
	}
}

func (d CollectorDoc) validate() error {
	switch {
	case d.TeamCity != nil:
		return d.TeamCity.Validate()
	case d.Azure != nil:
		return d.Azure.Validate()
	case d.GitHub != nil:
		return d.GitHub.Validate()
	case d.Octopus != nil:
		return d.Octopus.Validate()
	case d.AppVeyor != nil:
		return d.AppVeyor.Validate()
	case d.Duck != nil:
		return d.Duck.Validate()
	case d.Debugger != nil:
		return d.Debugger.Validate()
	default:
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("collector entry declares no known provider"))
	}
}

// ObserverDoc is one tagged, single-key observer variant.
type ObserverDoc struct {
	Hue        *hue.Config        `json:"hue,omitempty"`
	Slack      *slack.Config      `json:"slack,omitempty"`
	Mattermost *mattermost.Config `json:"mattermost,omitempty"`
}

func (d ObserverDoc) ID() (id string, provider string, ok bool) {
	switch {
	case d.Hue != nil:
		return d.Hue.ID, "hue", true
	case d.Slack != nil:
		return d.Slack.ID, "slack", true
	case d.Mattermost != nil:
		return d.Mattermost.ID, "mattermost", true
	default:
		return "", "", false
	}
}

func (d ObserverDoc) scopedCollectors() []string {
	switch {
	case d.Hue != nil:
		return d.Hue.Collectors
	case d.Slack != nil:
		return d.Slack.Collectors
	case d.Mattermost != nil:
		return d.Mattermost.Collectors
	default:
		return nil
	}
}

func (d ObserverDoc) validate() error {
	switch {
	case d.Hue != nil:
		return d.Hue.Validate()
	case d.Slack != nil:
		return d.Slack.Validate()
	case d.Mattermost != nil:
		return d.Mattermost.Validate()
	default:
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("observer entry declares no known provider"))
	}
}

// Document is the fully parsed, defaulted and validated configuration.
type Document struct {
	Title      string         `json:"title"`
	Interval   int            `json:"interval"`
	Views      []ViewDoc      `json:"views"`
	Collectors []CollectorDoc `json:"collectors"`
	Observers  []ObserverDoc  `json:"observers"`
}

// clampInterval applies the spec §3 poll-interval floor.
func (d *Document) clampInterval() {
	if d.Interval < MinInterval {
		d.Interval = MinInterval
	}
}

// parseDocument unmarshals raw (already placeholder-expanded) JSON into
// a Document.
func parseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, duckerr.Wrap(duckerr.ErrConfigParse, err)
	}
	return doc, nil
}
