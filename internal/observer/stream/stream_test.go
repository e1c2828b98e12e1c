package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/observer"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestInfoReflectsEnabled(t *testing.T) {
	o := New(Config{ID: "stream"}, testLogger())
	if !o.Info().Enabled {
		t.Fatal("expected an unset Enabled pointer to default to true")
	}
}

func TestServeHTTPFansOutObservations(t *testing.T) {
	o := New(Config{ID: "stream"}, testLogger())
	server := httptest.NewServer(o)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for {
		o.mu.Lock()
		n := len(o.subs)
		o.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subscriber registration")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := o.Observe(observer.DuckStatusChanged(buildmodel.StatusSuccess)); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if f.Kind != "duck_status_changed" {
		t.Fatalf("expected duck_status_changed frame, got %q", f.Kind)
	}
	if f.Status != "success" {
		t.Fatalf("expected success status, got %q", f.Status)
	}
}

func TestToFrameBuildUpdatedIncludesBuild(t *testing.T) {
	b := buildmodel.NewBuild("1", buildmodel.ProviderTeamCity, "origin", "teamcity-main", "proj", "Proj", "def", "Def", "42", buildmodel.StatusRunning, "main", "http://example.test", 0, nil)
	f := toFrame(observer.BuildUpdated(b))
	if f.Kind != "build_updated" {
		t.Fatalf("expected build_updated kind, got %q", f.Kind)
	}
	if f.Build == nil || f.Build.BuildNumber != "42" {
		t.Fatalf("expected build frame to carry the build number, got %+v", f.Build)
	}
}
