package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
)

type recordingClient struct {
	req  *http.Request
	body []byte
}

func (c *recordingClient) Do(_ context.Context, req *http.Request) (httpclient.Response, error) {
	c.req = req
	if req.Body != nil {
		buf := make([]byte, req.ContentLength)
		req.Body.Read(buf)
		c.body = buf
	}
	return httpclient.Response{StatusCode: http.StatusOK}, nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func validConfig() Config {
	return Config{ID: "slack-main", WebhookURL: "http://example.test/hooks/abc"}
}

func TestValidateRequiresID(t *testing.T) {
	cfg := validConfig()
	cfg.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a missing id")
	}
}

func TestValidateRejectsInvalidWebhookURL(t *testing.T) {
	cfg := validConfig()
	cfg.WebhookURL = "not-a-url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an invalid webhookUrl")
	}
}

func TestUsernameDefaultsToDuck(t *testing.T) {
	cfg := validConfig()
	if cfg.username() != "Duck" {
		t.Fatalf("expected default username Duck, got %q", cfg.username())
	}
}

func TestObservePostsDuckStatusChanged(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := o.Observe(observer.DuckStatusChanged(buildmodel.StatusFailed)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if client.req == nil {
		t.Fatal("expected a POST request")
	}
	if client.req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", client.req.Method)
	}

	var payload webhookPayload
	if err := json.Unmarshal(client.body, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload.IconEmoji != ":x:" {
		t.Fatalf("expected failed status emoji, got %q", payload.IconEmoji)
	}
}

func TestObserveAbsoluteStatusChangedIncludesBuildURL(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "teamcity-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusSuccess, "main", "http://example.test/build/1", 0, nil)
	if err := o.Observe(observer.AbsoluteStatusChanged(b)); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	var payload webhookPayload
	if err := json.Unmarshal(client.body, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload.Text == "" {
		t.Fatal("expected non-empty text")
	}
	if !strings.Contains(payload.Text, b.URL) {
		t.Fatalf("expected message to include the build URL, got %q", payload.Text)
	}
}

func TestObserveIgnoresBuildUpdated(t *testing.T) {
	client := &recordingClient{}
	o, err := New(validConfig(), client, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "teamcity-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusRunning, "main", "http://example.test", 0, nil)
	if err := o.Observe(observer.BuildUpdated(b)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if client.req != nil {
		t.Fatal("expected BuildUpdated to not trigger a webhook post")
	}
}
