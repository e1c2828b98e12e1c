// Package github collects workflow run status from GitHub Actions (spec
// §6): GET /repos/{owner}/{repo}/actions/workflows/{file}/runs, HTTP
// Basic, with If-None-Match ETag caching to avoid burning through the
// API's rate limit on unpaced polling.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/dateutil"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/latch"
)

// Workflow names one workflow file in a repository to poll.
type Workflow struct {
	File string `json:"file"`
	Name string `json:"name"`
}

// Config is the per-instance configuration for a GitHub Actions
// collector.
type Config struct {
	ID        string     `json:"id"`
	Enabled   *bool      `json:"enabled"`
	Owner     string     `json:"owner"`
	Repo      string     `json:"repo"`
	Username  string     `json:"username"`
	Token     string     `json:"token"`
	Workflows []Workflow `json:"workflows"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("github collector: id is required"))
	}
	if c.Owner == "" || c.Repo == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("github collector %q: owner and repo are required", c.ID))
	}
	if c.Token == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("github collector %q: a token is required", c.ID))
	}
	if len(c.Workflows) == 0 {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("github collector %q: at least one workflow is required", c.ID))
	}
	return nil
}

// Collector polls a repository's GitHub Actions workflows. etags caches
// the last ETag seen per workflow file so an unchanged upstream state
// costs GitHub's API quota nothing beyond a conditional GET.
type Collector struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
	etags  *gocache.Cache
	last   *gocache.Cache
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{
		cfg:    cfg,
		client: client,
		log:    log.WithField("collector", cfg.ID).WithField("provider", "github"),
		etags:  gocache.New(1*time.Hour, 10*time.Minute),
		last:   gocache.New(1*time.Hour, 10*time.Minute),
	}, nil
}

func (c *Collector) Info() collector.Info {
	return collector.Info{ID: c.cfg.ID, Enabled: c.cfg.enabled(), Provider: buildmodel.ProviderGitHubActions}
}

type ghRun struct {
	ID         int64  `json:"id"`
	RunNumber  int    `json:"run_number"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	HeadBranch string `json:"head_branch"`
	HTMLURL    string `json:"html_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type ghRunsResponse struct {
	WorkflowRuns []ghRun `json:"workflow_runs"`
}

func (c *Collector) Collect(ctx context.Context, stop *latch.StopSignal, emit collector.Emit) error {
	first := true
	for _, wf := range c.cfg.Workflows {
		if stop.IsSignaled() {
			return nil
		}
		if !first {
			if err := collector.Throttle(ctx, stop); err != nil {
				return nil
			}
		}
		first = false
		if err := c.collectOne(ctx, wf, emit); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) collectOne(ctx context.Context, wf Workflow, emit collector.Emit) error {
	endpoint := fmt.Sprintf("https://api.github.com/repos/%s/%s/actions/workflows/%s/runs?per_page=20",
		c.cfg.Owner, c.cfg.Repo, wf.File)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if etag, ok := c.etags.Get(wf.File); ok {
		req.Header.Set("If-None-Match", etag.(string))
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorTransport, err)
	}

	if resp.StatusCode == http.StatusNotModified {
		if cached, ok := c.last.Get(wf.File); ok {
			for _, b := range cached.([]buildmodel.Build) {
				emit(b)
			}
		}
		return nil
	}
	if !resp.IsSuccess() {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, fmt.Errorf("github returned status %d", resp.StatusCode))
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.etags.Set(wf.File, etag, gocache.DefaultExpiration)
	}

	var parsed ghRunsResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return duckerr.Wrap(duckerr.ErrCollectorProtocol, err)
	}

	emitted := make([]buildmodel.Build, 0, len(parsed.WorkflowRuns))
	for _, run := range parsed.WorkflowRuns {
		started, err := dateutil.Parse(run.CreatedAt)
		if err != nil {
			c.log.WithError(err).Warn("skipping run with unparseable created_at")
			continue
		}
		var finished *int64
		if run.Status == "completed" {
			f, err := dateutil.Parse(run.UpdatedAt)
			if err == nil {
				finished = &f
			}
		}

		b := buildmodel.NewBuild(
			fmt.Sprintf("%d", run.ID),
			buildmodel.ProviderGitHubActions,
			fmt.Sprintf("https://github.com/%s/%s", c.cfg.Owner, c.cfg.Repo),
			c.cfg.ID,
			fmt.Sprintf("%s/%s", c.cfg.Owner, c.cfg.Repo),
			fmt.Sprintf("%s/%s", c.cfg.Owner, c.cfg.Repo),
			wf.File,
			firstNonEmpty(wf.Name, wf.File),
			fmt.Sprintf("%d", run.RunNumber),
			mapStatus(run),
			run.HeadBranch,
			run.HTMLURL,
			started,
			finished,
		)
		emit(b)
		emitted = append(emitted, b)
	}
	c.last.Set(wf.File, emitted, gocache.DefaultExpiration)
	return nil
}

// mapStatus applies GitHub Actions' two-field status model: a run still
// queued or in progress reports no conclusion yet; a completed run's
// conclusion maps directly onto the canonical status set.
func mapStatus(run ghRun) buildmodel.Status {
	switch run.Status {
	case "queued", "waiting", "requested", "pending":
		return buildmodel.StatusQueued
	case "in_progress":
		return buildmodel.StatusRunning
	}
	switch run.Conclusion {
	case "success":
		return buildmodel.StatusSuccess
	case "cancelled":
		return buildmodel.StatusCanceled
	case "skipped", "neutral":
		return buildmodel.StatusSkipped
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
