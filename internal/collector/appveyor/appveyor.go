// Package appveyor collects build status from AppVeyor (spec §6): GET
// https://ci.appveyor.com/api/projects/{account}/{project}/history,
// Bearer token auth.
package appveyor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/dateutil"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
)

// Config is the per-instance configuration for an AppVeyor collector.
type Config struct {
	ID           string `json:"id"`
	Enabled      *bool  `json:"enabled"`
	Account      string `json:"account"`
	Project      string `json:"project"`
	Token        string `json:"token"`
	RecordsCount int    `json:"recordsNumber"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }
func (c Config) records() int {
	if c.RecordsCount <= 0 {
		return 20
	}
	return c.RecordsCount
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("appveyor collector: id is required"))
	}
	if c.Account == "" || c.Project == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("appveyor collector %q: account and project are required", c.ID))
	}
	if c.Token == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("appveyor collector %q: a bearer token is required", c.ID))
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
	return &Collector{cfg: cfg, client: client, log: log.WithField("collector", cfg.ID).WithField("provider", "appveyor")}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderAppVeyor}
}

type avBuild struct {
	BuildID int    `json:"buildId"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Branch  string `json:"branch"`
	Started string `json:"started"`
	Finished string `json:"finished"`
}

type avHistory struct {
	Project struct {
		ProjectID int    `json:"projectId"`
		Name      string `json:"name"`
		Slug      string `json:"slug"`
	} `json:"project"`
	Builds []avBuild `json:"builds"`
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	if stop.IsSignaled() {
		return nil
	}

	endpoint := fmt.Sprintf("https://ci.appveyor.com/api/projects/%s/%s/history?recordsNumber=%d",
		c.cfg.Account, c.cfg.Project, c.cfg.records())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("appveyor returned status %d", resp.StatusCode))
	}

	var parsed avHistory
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	for _, b := range parsed.Builds {
		started, err := dateutil.Parse(b.Started)
		if err != nil {
			c.log.WithError(err).Warn("skipping build with unparseable started time")
			continue
		}
		finished, _ := dateutil.ParseOptional(b.Finished)

		emit(buildmodel.NewBuild(
			fmt.Sprintf("%d", b.BuildID),
			buildmodel.ProviderAppVeyor,
			"https://ci.appveyor.com",
			c.cfg.ID,
			parsed.Project.Slug,
			parsed.Project.Name,
			parsed.Project.Slug,
			parsed.Project.Name,
			b.Version,
			mapStatus(b.Status),
			b.Branch,
			fmt.Sprintf("https://ci.appveyor.com/project/%s/%s/build/%s", c.cfg.Account, c.cfg.Project, b.Version),
			started,
			finished,
		))
	}
	return nil
}

func mapStatus(status string) buildmodel.Status {
	switch status {
	case "running":
		return buildmodel.StatusRunning
	case "queued", "starting":
		return buildmodel.StatusQueued
	case "success":
		return buildmodel.StatusSuccess
	case "cancelled":
		return buildmodel.StatusCanceled
	default:
		return buildmodel.StatusFailed
	}
}
