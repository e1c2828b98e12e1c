// Package teamcity collects build status from a TeamCity server's REST
// API (spec §6): GET .../app/rest/builds?locator=..., guest auth or
// HTTP Basic.
package teamcity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/dateutil"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
)

// Definition names one buildType TeamCity tracks, scoped to a set of
// branches (empty means TeamCity's default branch only).
type Definition struct {
	ProjectID string   `json:"project"`
	ID        string   `json:"definition"`
	Branches  []string `json:"branches"`
}

// Config is the per-instance configuration for a TeamCity collector.
type Config struct {
	ID          string       `json:"id"`
	Enabled     *bool        `json:"enabled"`
	ServerURL   string       `json:"serverUrl"`
	Username    string       `json:"username"`
	Password    string       `json:"password"`
	Guest       bool         `json:"useGuestLogin"`
	Definitions []Definition `json:"definitions"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

// Validate enforces spec §4.4/§4.6's per-provider rules: non-empty id,
// a parseable server URL, credentials present unless guest auth is
// requested, and at least one definition.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("teamcity collector: id is required"))
	}
	if _, err := url.ParseRequestURI(c.ServerURL); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "teamcity collector %q: invalid serverUrl", c.ID)
	}
	if !c.Guest && (c.Username == "" || c.Password == "") {
		return duckerr.Wrap(duckerr.ErrConfigValidation,
			fmt.Errorf("teamcity collector %q: username and password are required unless useGuestLogin is set", c.ID))
	}
	if len(c.Definitions) == 0 {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("teamcity collector %q: at least one definition is required", c.ID))
	}
	return nil
}

// Collector polls a single TeamCity server.
type Collector struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
}

// New validates cfg and constructs a ready-to-run Collector.
func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg:    cfg,
		client: client,
		log:    log.WithField("collector", cfg.ID).WithField("provider", "teamcity"),
	}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderTeamCity}
}

type tcBuild struct {
	ID          int    `json:"id"`
	Number      string `json:"number"`
	Status      string `json:"status"`
	State       string `json:"state"`
	BranchName  string `json:"branchName"`
	WebURL      string `json:"webUrl"`
	StartDate   string `json:"startDate"`
	FinishDate  string `json:"finishDate"`
	BuildTypeID string `json:"buildTypeId"`
}

type tcBuildsResponse struct {
	Build []tcBuild `json:"build"`
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	first := true
	for _, def := range c.cfg.Definitions {
		branches := def.Branches
		if len(branches) == 0 {
			branches = []string{""}
		}
		for _, branch := range branches {
			if stop.IsSignaled() {
				return nil
			}
			if !first {
				if err := collector.Throttle(ctx, stop); err != nil {
					return nil
				}
			}
			first = false
			if err := c.collectOne(ctx, def, branch, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collector) collectOne(ctx context.Context, def Definition, branch string, emit collector.Emit) error {
	locator := fmt.Sprintf("buildType:%s,count:20", def.ID)
	if branch != "" {
		locator += fmt.Sprintf(",branch:%s", branch)
	}

	authSegment := "guestAuth"
	if !c.cfg.Guest {
		authSegment = "httpAuth"
	}

	endpoint := fmt.Sprintf("%s/%s/app/rest/builds?locator=%s",
		strings.TrimRight(c.cfg.ServerURL, "/"), authSegment, url.QueryEscape(locator))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if !c.cfg.Guest {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("teamcity returned status %d", resp.StatusCode))
	}

	var parsed tcBuildsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	for _, b := range parsed.Build {
		started, err := dateutil.Parse(b.StartDate)
		if err != nil {
			c.log.WithError(err).Warn("skipping build with unparseable start date")
			continue
		}
		finished, _ := dateutil.ParseOptional(b.FinishDate)

		emit(buildmodel.NewBuild(
			fmt.Sprintf("%d", b.ID),
			buildmodel.ProviderTeamCity,
			c.cfg.ServerURL,
			c.cfg.ID,
			def.ProjectID,
			def.ProjectID,
			b.BuildTypeID,
			b.BuildTypeID,
			b.Number,
			mapStatus(b),
			firstNonEmpty(b.BranchName, "default"),
			b.WebURL,
			started,
			finished,
		))
	}
	return nil
}

// mapStatus applies the teamcity-specific status table from spec §4.4:
// a build still running reports state "running"; otherwise TeamCity's
// own "SUCCESS"/anything-else status string maps to Success/Failed.
func mapStatus(b tcBuild) buildmodel.Status {
	if b.State == "running" {
		return buildmodel.StatusRunning
	}
	if b.State == "queued" {
		return buildmodel.StatusQueued
	}
	if strings.EqualFold(b.Status, "SUCCESS") {
		return buildmodel.StatusSuccess
	}
	return buildmodel.StatusFailed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
