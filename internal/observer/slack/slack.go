// Package slack posts duck status changes to a Slack incoming webhook
// (spec §6 / SPEC_FULL.md supplement): POST {webhookUrl} with a JSON
// body carrying text, username and icon_emoji.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
)

// Config is the per-instance configuration for a Slack observer.
type Config struct {
	ID         string   `json:"id"`
	Enabled    *bool    `json:"enabled"`
	WebhookURL string   `json:"webhookUrl"`
	Username   string   `json:"username"`
	Collectors []string `json:"collectors"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }
func (c Config) username() string {
	if c.Username == "" {
		return "Duck"
	}
	return c.Username
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("slack observer: id is required"))
	}
	if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "slack observer %q: invalid webhookUrl", c.ID)
	}
	return nil
}

// statusEmoji maps a status (the overall duck status, or the build's own
// status for an absolute change) to an icon_emoji.
var statusEmoji = map[buildmodel.Status]string{
	buildmodel.StatusUnknown: ":grey_question:",
	buildmodel.StatusSuccess: ":white_check_mark:",
	buildmodel.StatusFailed:  ":x:",
	buildmodel.StatusRunning: ":runner:",
}

type webhookPayload struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

// Observer posts a message to a Slack webhook whenever the overall
// duck status changes, or a build's absolute status flips within its
// configured collector scope.
type Observer struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Observer{cfg: cfg, client: client, log: log.WithField("observer", cfg.ID).WithField("sink", "slack")}, nil
}

func (o *Observer) Info() observer.Info {
	info := observer.Info{ID: o.cfg.ID, Enabled: o.cfg.enabled()}
	if len(o.cfg.Collectors) > 0 {
		info.Collectors = make(map[string]struct{}, len(o.cfg.Collectors))
		for _, c := range o.cfg.Collectors {
			info.Collectors[c] = struct{}{}
		}
	}
	return info
}

func (o *Observer) Observe(ob observer.Observation) error {
	var text string
	status := ob.Status
	switch ob.Kind {
	case observer.KindDuckStatusChanged:
		text = fmt.Sprintf("Overall build status is now *%s*", ob.Status)
	case observer.KindAbsoluteStatusChanged:
		status = ob.Build.Status
		text = fmt.Sprintf("Build `%s` (%s) finished with status *%s* - %s", ob.Build.DefinitionName, ob.Build.BuildNumber, ob.Build.Status, ob.Build.URL)
	default:
		return nil
	}

	payload := webhookPayload{Text: text, Username: o.cfg.username(), IconEmoji: statusEmoji[status]}
	body, err := json.Marshal(payload)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrObserverTransport, err)
	}

	req, err := http.NewRequest(http.MethodPost, o.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return duckerr.Wrap(duckerr.ErrObserverTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(context.Background(), req)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrObserverTransport, err)
	}
	if !resp.IsSuccess() {
		o.log.WithField("status", resp.StatusCode).Warn("slack webhook rejected message")
	}
	return nil
}
