// Package octopus collects deployment status from Octopus Deploy's
// dashboard API (spec §6): GET /api/dashboard, X-Octopus-ApiKey header.
package octopus

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

// Config is the per-instance configuration for an Octopus Deploy
// collector. Projects, when non-empty, restricts which project ids are
// reported; an empty list reports every project the dashboard shows.
type Config struct {
	ID        string   `json:"id"`
	Enabled   *bool    `json:"enabled"`
	ServerURL string   `json:"serverUrl"`
	APIKey    string   `json:"apiKey"`
	Projects  []string `json:"projects"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("octopus collector: id is required"))
	}
	if _, err := url.ParseRequestURI(c.ServerURL); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "octopus collector %q: invalid serverUrl", c.ID)
	}
	if c.APIKey == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("octopus collector %q: an API key is required", c.ID))
	}
	return nil
}

type Collector struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, client: client, log: log.WithField("collector", cfg.ID).WithField("provider", "octopus")}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderOctopusDeploy}
}

type octoItem struct {
	ID             string `json:"Id"`
	ProjectID      string `json:"ProjectId"`
	EnvironmentID  string `json:"EnvironmentId"`
	ReleaseVersion string `json:"ReleaseVersion"`
	State          string `json:"State"`
	Created        string `json:"Created"`
	CompletedTime  string `json:"CompletedTime"`
}

type octoProject struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

type octoDashboard struct {
	Items    []octoItem    `json:"Items"`
	Projects []octoProject `json:"Projects"`
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	if stop.IsSignaled() {
		return nil
	}

	endpoint := strings.TrimRight(c.cfg.ServerURL, "/") + "/api/dashboard"
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.Header.Set("X-Octopus-ApiKey", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("octopus returned status %d", resp.StatusCode))
	}

	var parsed octoDashboard
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	projectNames := make(map[string]string, len(parsed.Projects))
	for _, p := range parsed.Projects {
		projectNames[p.ID] = p.Name
	}

	allowed := map[string]struct{}{}
	for _, p := range c.cfg.Projects {
		allowed[p] = struct{}{}
	}

	for _, item := range parsed.Items {
		if len(allowed) > 0 {
			if _, ok := allowed[item.ProjectID]; !ok {
				continue
			}
		}
		started, err := dateutil.Parse(item.Created)
		if err != nil {
			c.log.WithError(err).Warn("skipping deployment with unparseable created time")
			continue
		}
		finished, _ := dateutil.ParseOptional(item.CompletedTime)

		emit(buildmodel.NewBuild(
			item.ID,
			buildmodel.ProviderOctopusDeploy,
			c.cfg.ServerURL,
			c.cfg.ID,
			item.ProjectID,
			firstNonEmpty(projectNames[item.ProjectID], item.ProjectID),
			item.EnvironmentID,
			item.EnvironmentID,
			item.ReleaseVersion,
			mapStatus(item.State),
			item.EnvironmentID,
			strings.TrimRight(c.cfg.ServerURL, "/")+"/app#/deployments/"+item.ID,
			started,
			finished,
		))
	}
	return nil
}

// mapStatus applies Octopus's deployment-state table.
func mapStatus(state string) buildmodel.Status {
	switch state {
	case "Executing":
		return buildmodel.StatusRunning
	case "Queued":
		return buildmodel.StatusQueued
	case "Success":
		return buildmodel.StatusSuccess
	case "Canceled":
		return buildmodel.StatusCanceled
	default:
		return buildmodel.StatusFailed
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
