// Package mattermost posts duck status changes to a Mattermost
// incoming webhook (spec §6 / SPEC_FULL.md supplement): POST
// {webhookUrl} with a JSON body carrying text and an optional
// channel_id override.
package mattermost

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

// Config is the per-instance configuration for a Mattermost observer.
type Config struct {
	ID         string   `json:"id"`
	Enabled    *bool    `json:"enabled"`
	WebhookURL string   `json:"webhookUrl"`
	ChannelID  string   `json:"channelId"`
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
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("mattermost observer: id is required"))
	}
	if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
		return duckerr.Wrapf(duckerr.ErrConfigValidation, err, "mattermost observer %q: invalid webhookUrl", c.ID)
	}
	return nil
}

var statusPrefix = map[buildmodel.Status]string{
	buildmodel.StatusUnknown: ":grey_question:",
	buildmodel.StatusSuccess: ":white_check_mark:",
	buildmodel.StatusFailed:  ":red_circle:",
	buildmodel.StatusRunning: ":hourglass_flowing_sand:",
}

type webhookPayload struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	ChannelID string `json:"channel_id,omitempty"`
}

// Observer posts a message to a Mattermost webhook whenever the
// overall duck status changes, or a build's absolute status flips
// within its configured collector scope.
type Observer struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Observer{cfg: cfg, client: client, log: log.WithField("observer", cfg.ID).WithField("sink", "mattermost")}, nil
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
	switch ob.Kind {
	case observer.KindDuckStatusChanged:
		text = fmt.Sprintf("%s Overall build status is now **%s**", statusPrefix[ob.Status], ob.Status)
	case observer.KindAbsoluteStatusChanged:
		text = fmt.Sprintf("%s Build `%s` (%s) finished with status **%s** - %s",
			statusPrefix[ob.Build.Status], ob.Build.DefinitionName, ob.Build.BuildNumber, ob.Build.Status, ob.Build.URL)
	default:
		return nil
	}

	payload := webhookPayload{Text: text, Username: o.cfg.username(), ChannelID: o.cfg.ChannelID}
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
		o.log.WithField("status", resp.StatusCode).Warn("mattermost webhook rejected message")
	}
	return nil
}
