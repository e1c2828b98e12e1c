// Package duckpeer collects builds from a peer instance of this same
// service (spec §6): GET /api/server (a version handshake) and GET
// /api/builds[/view/{id}]. The peer must report a matching protocol
// version or the collector aborts permanently — once a version
// mismatch is detected, the latch stays tripped and every subsequent
// Collect call short-circuits with the same error without making a
// wasted request.
package duckpeer

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
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
)

// ProtocolVersion is this service's wire protocol version, reported on
// /api/server and checked against a peer's before accepting its builds.
const ProtocolVersion = "1"

// Config is the per-instance configuration for a duck-peer collector.
type Config struct {
	ID        string `json:"id"`
	Enabled   *bool  `json:"enabled"`
	ServerURL string `json:"serverUrl"`
	ViewID    string `json:"view"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("duck collector: id is required"))
	}
	if _, err := url.ParseRequestURI(c.ServerURL); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "duck collector %q: invalid serverUrl", c.ID)
	}
	return nil
}

type Collector struct {
	cfg     Config
	client  httpclient.Client
	log     logrus.FieldLogger
	aborted latch.Switch
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, client: client, log: log.WithField("collector", cfg.ID).WithField("provider", "duck")}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderDuck}
}

type serverInfo struct {
	Version string `json:"version"`
}

type peerBuild struct {
	ID             uint64 `json:"id"`
	BuildID        string `json:"build_id"`
	Provider       string `json:"provider"`
	Origin         string `json:"origin"`
	Collector      string `json:"collector"`
	ProjectID      string `json:"project_id"`
	ProjectName    string `json:"project_name"`
	DefinitionID   string `json:"definition_id"`
	DefinitionName string `json:"definition_name"`
	BuildNumber    string `json:"build_number"`
	Status         string `json:"status"`
	Branch         string `json:"branch"`
	URL            string `json:"url"`
	StartedAt      int64  `json:"started_at"`
	FinishedAt     *int64 `json:"finished_at"`
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	if c.aborted.IsOn() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("duck peer %q: disabled after a protocol version mismatch", c.cfg.ID))
	}
	if stop.IsSignaled() {
		return nil
	}

	if err := c.checkVersion(ctx); err != nil {
		return err
	}

	if err := collector.Throttle(ctx, stop); err != nil {
		return nil
	}

	endpoint := strings.TrimRight(c.cfg.ServerURL, "/") + "/api/builds"
	if c.cfg.ViewID != "" {
		endpoint += "/view/" + url.PathEscape(c.cfg.ViewID)
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("duck peer returned status %d", resp.StatusCode))
	}

	var builds []peerBuild
	if err := json.Unmarshal(resp.Body, &builds); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	for _, b := range builds {
		status, err := buildmodel.ParseStatus(b.Status)
		if err != nil {
			status = buildmodel.StatusUnknown
		}
		emit(buildmodel.NewBuild(
			b.BuildID, providerFromString(b.Provider), b.Origin, c.cfg.ID,
			b.ProjectID, b.ProjectName, b.DefinitionID, b.DefinitionName,
			b.BuildNumber, status, b.Branch, b.URL, b.StartedAt, b.FinishedAt,
		))
	}
	return nil
}

func (c *Collector) checkVersion(ctx context.Context) error {
	endpoint := strings.TrimRight(c.cfg.ServerURL, "/") + "/api/server"
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("duck peer returned status %d from /api/server", resp.StatusCode))
	}

	var info serverInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}
	if info.Version != ProtocolVersion {
		c.aborted.TurnOn()
		return duckerr.Wrap(duckerr.ErrCollectorProtocol,
			fmt.Errorf("duck peer %q reports protocol version %q, expected %q", c.cfg.ID, info.Version, ProtocolVersion))
	}
	return nil
}

func providerFromString(s string) buildmodel.Provider {
	switch strings.ToLower(s) {
	case "teamcity":
		return buildmodel.ProviderTeamCity
	case "azure":
		return buildmodel.ProviderAzureDevOps
	case "github":
		return buildmodel.ProviderGitHubActions
	case "octopus":
		return buildmodel.ProviderOctopusDeploy
	case "appveyor":
		return buildmodel.ProviderAppVeyor
	case "duck":
		return buildmodel.ProviderDuck
	case "debugger":
		return buildmodel.ProviderDebugger
	default:
		return buildmodel.ProviderUnknown
	}
}
