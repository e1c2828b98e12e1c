// Package azure collects build status from Azure DevOps Pipelines
// (spec §6): GET https://dev.azure.com/{org}/{proj}/_apis/build/builds,
// HTTP Basic with an empty username and a PAT as password.
package azure

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

// Definition names one Azure Pipelines build definition, scoped to a
// set of branches.
type Definition struct {
	ID       int      `json:"definitionId"`
	Name     string   `json:"name"`
	Branches []string `json:"branches"`
}

// Config is the per-instance configuration for an Azure DevOps
// collector. BaseURL defaults to https://dev.azure.com for the hosted
// service but may point at an on-premises Azure DevOps Server instance.
type Config struct {
	ID           string       `json:"id"`
	Enabled      *bool        `json:"enabled"`
	BaseURL      string       `json:"baseUrl"`
	Organization string       `json:"organization"`
	Project      string       `json:"project"`
	Token        string       `json:"token"`
	Definitions  []Definition `json:"definitions"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("azure collector: id is required"))
	}
	base := c.BaseURL
	if base == "" {
		base = "https://dev.azure.com"
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "azure collector %q: invalid baseUrl", c.ID)
	}
	if c.Organization == "" || c.Project == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("azure collector %q: organization and project are required", c.ID))
	}
	if c.Token == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("azure collector %q: a personal access token is required", c.ID))
	}
	if len(c.Definitions) == 0 {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("azure collector %q: at least one definition is required", c.ID))
	}
	return nil
}

type Collector struct {
	cfg     Config
	client  httpclient.Client
	log     logrus.FieldLogger
	baseURL string
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://dev.azure.com"
	}
	return &Collector{
		cfg:     cfg,
		client:  client,
		log:     log.WithField("collector", cfg.ID).WithField("provider", "azure"),
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderAzureDevOps}
}

type azBuild struct {
	ID           int    `json:"id"`
	BuildNumber  string `json:"buildNumber"`
	Status       string `json:"status"`
	Result       string `json:"result"`
	SourceBranch string `json:"sourceBranch"`
	StartTime    string `json:"startTime"`
	FinishTime   string `json:"finishTime"`
	URL          string `json:"url"`
	Definition   struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"definition"`
}

type azResponse struct {
	Value []azBuild `json:"value"`
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
	endpoint := fmt.Sprintf("%s/%s/%s/_apis/build/builds?definitions=%d&api-version=6.0&$top=20",
		c.baseURL, url.PathEscape(c.cfg.Organization), url.PathEscape(c.cfg.Project), def.ID)
	if branch != "" {
		endpoint += "&branchName=" + url.QueryEscape(branch)
	}

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.SetBasicAuth("", c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("azure devops returned status %d", resp.StatusCode))
	}

	var parsed azResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	for _, b := range parsed.Value {
		started, err := dateutil.Parse(b.StartTime)
		if err != nil {
			c.log.WithError(err).Warn("skipping build with unparseable start time")
			continue
		}
		finished, _ := dateutil.ParseOptional(b.FinishTime)

		emit(buildmodel.NewBuild(
			fmt.Sprintf("%d", b.ID),
			buildmodel.ProviderAzureDevOps,
			c.baseURL,
			c.cfg.ID,
			fmt.Sprintf("%d", def.ID),
			def.Name,
			fmt.Sprintf("%d", b.Definition.ID),
			b.Definition.Name,
			b.BuildNumber,
			mapStatus(b),
			strings.TrimPrefix(b.SourceBranch, "refs/heads/"),
			b.URL,
			started,
			finished,
		))
	}
	return nil
}

// mapStatus applies the Azure-specific table from spec §4.4:
// status=="inProgress" -> Running, status=="notStarted" -> Queued,
// otherwise consult result: "succeeded" -> Success, "canceled" ->
// Canceled, anything else -> Failed.
func mapStatus(b azBuild) buildmodel.Status {
	switch b.Status {
	case "inProgress":
		return buildmodel.StatusRunning
	case "notStarted":
		return buildmodel.StatusQueued
	}
	switch b.Result {
	case "succeeded":
		return buildmodel.StatusSuccess
	case "canceled":
		return buildmodel.StatusCanceled
	default:
		return buildmodel.StatusFailed
	}
}
