package hue

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
)

type recordingClient struct {
	requests []*http.Request
	bodies   [][]byte
}

func (c *recordingClient) Do(_ context.Context, req *http.Request) (httpclient.Response, error) {
	c.requests = append(c.requests, req)
	if req.Body != nil {
		buf := make([]byte, req.ContentLength)
		req.Body.Read(buf)
		c.bodies = append(c.bodies, buf)
	}
	return httpclient.Response{StatusCode: http.StatusOK}, nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func validConfig() Config {
	return Config{
		ID:        "hue-main",
		BridgeURL: "http://bridge.local",
		Username:  "abc123",
		Lights:    []string{"1", "2"},
	}
}

func TestValidateRequiresID(t *testing.T) {
	cfg := validConfig()
	cfg.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing id")
	}
}

func TestValidateRequiresBridgeAndUsername(t *testing.T) {
	cfg := validConfig()
	cfg.BridgeURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing bridgeUrl")
	}

	cfg = validConfig()
	cfg.Username = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing username")
	}
}

func TestValidateRequiresAtLeastOneLight(t *testing.T) {
	cfg := validConfig()
	cfg.Lights = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an empty light list")
	}
}

func TestObserveSetsLightStateForEachLight(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Observe(observer.DuckStatusChanged(buildmodel.StatusSuccess)); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	if len(client.requests) != 2 {
		t.Fatalf("expected one PUT per configured light, got %d requests", len(client.requests))
	}
	for _, req := range client.requests {
		if req.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", req.Method)
		}
	}
}

func TestObserveIgnoresNonStatusKinds(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "teamcity-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test", 0, nil)
	if err := o.Observe(observer.BuildUpdated(b)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected BuildUpdated to be ignored, got %d requests", len(client.requests))
	}
}

func TestObserveShuttingDownTurnsLightsOff(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Observe(observer.ShuttingDown()); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected one off PUT per configured light, got %d", len(client.requests))
	}
	for _, body := range client.bodies {
		var payload struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if payload.On {
			t.Fatal("expected shutdown payload to set on=false")
		}
	}
}

func TestInfoReflectsScope(t *testing.T) {
	cfg := validConfig()
	cfg.Collectors = []string{"teamcity-main"}
	o, err := New(cfg, &recordingClient{}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info := o.Info()
	if info.Collectors == nil {
		t.Fatal("expected a non-nil scope")
	}
	if _, ok := info.Collectors["teamcity-main"]; !ok {
		t.Fatal("expected teamcity-main to be in scope")
	}
}
