// Package hue drives Philips Hue lights from the overall duck status
// (spec §6, grounded on original_source's observers/hue.rs): PUT
// {bridgeUrl}/api/{username}/lights/{id}/state with an xy chromaticity
// pair computed from an RGB status color.
package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/colorutil"
	"github.com/duckhq/duckwatch/internal/duckerr"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
)

// Config is the per-instance configuration for a Hue observer.
type Config struct {
	ID         string   `json:"id"`
	Enabled    *bool    `json:"enabled"`
	BridgeURL  string   `json:"bridgeUrl"`
	Username   string   `json:"username"`
	Lights     []string `json:"lights"`
	Brightness int      `json:"brightness"`
	Collectors []string `json:"collectors"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }
func (c Config) brightness() int {
	if c.Brightness <= 0 {
		return 254
	}
	return c.Brightness
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("hue observer: id is required"))
	}
	if c.BridgeURL == "" || c.Username == "" {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("hue observer %q: bridgeUrl and username are required", c.ID))
	}
	if len(c.Lights) == 0 {
		return duckerr.Wrap(duckerr.ErrConfigValidation, fmt.Errorf("hue observer %q: at least one light is required", c.ID))
	}
	return nil
}

// statusColor is the RGB triple shown for each overall duck status,
// matching the table observers/hue.rs uses.
var statusColor = map[buildmodel.Status]colorutil.RGB{
	buildmodel.StatusUnknown: {R: 255, G: 255, B: 255},
	buildmodel.StatusSuccess: {R: 0, G: 255, B: 0},
	buildmodel.StatusFailed:  {R: 255, G: 0, B: 0},
	buildmodel.StatusRunning: {R: 127, G: 200, B: 255},
}

type lightState struct {
	On    bool       `json:"on"`
	Alert string     `json:"alert"`
	XY    [2]float64 `json:"xy"`
	Bri   int        `json:"bri"`
}

// Observer sets every configured light to a color representing the
// most recent overall duck status it has observed.
type Observer struct {
	cfg    Config
	client httpclient.Client
	log    logrus.FieldLogger
}

func New(cfg Config, client httpclient.Client, log logrus.FieldLogger) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Observer{cfg: cfg, client: client, log: log.WithField("observer", cfg.ID).WithField("sink", "hue")}, nil
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
	if ob.Kind == observer.KindShuttingDown {
		return o.turnOff()
	}
	if ob.Kind != observer.KindDuckStatusChanged {
		return nil
	}
	rgb, ok := statusColor[ob.Status]
	if !ok {
		rgb = statusColor[buildmodel.StatusUnknown]
	}
	x, y := rgb.ToCIE()

	state := lightState{On: true, Alert: "select", XY: [2]float64{x, y}, Bri: o.cfg.brightness()}
	body, err := json.Marshal(state)
	if err != nil {
		return duckerr.Wrap(duckerr.ErrObserverTransport, err)
	}

	for _, light := range o.cfg.Lights {
		endpoint := fmt.Sprintf("%s/api/%s/lights/%s/state", strings.TrimRight(o.cfg.BridgeURL, "/"), o.cfg.Username, light)
		req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			return duckerr.Wrap(duckerr.ErrObserverTransport, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(context.Background(), req)
		if err != nil {
			o.log.WithError(err).WithField("light", light).Warn("failed to set hue light state")
			continue
		}
		if !resp.IsSuccess() {
			o.log.WithField("light", light).WithField("status", resp.StatusCode).Warn("hue bridge rejected light state")
		}
	}
	return nil
}

// turnOff switches every declared light off, sent once on ShuttingDown.
func (o *Observer) turnOff() error {
	body, err := json.Marshal(struct {
		On bool `json:"on"`
	}{On: false})
	if err != nil {
		return duckerr.Wrap(duckerr.ErrObserverTransport, err)
	}
	for _, light := range o.cfg.Lights {
		endpoint := fmt.Sprintf("%s/api/%s/lights/%s/state", strings.TrimRight(o.cfg.BridgeURL, "/"), o.cfg.Username, light)
		req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if resp, err := o.client.Do(context.Background(), req); err != nil || !resp.IsSuccess() {
			o.log.WithField("light", light).Warn("failed to turn off hue light on shutdown")
		}
	}
	return nil
}
