package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duckhq/duckwatch/internal/bus"
	"github.com/duckhq/duckwatch/internal/latch"
)

func TestWatcherPublishesOnSuccessfulLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())
	b := bus.New[ConfigurationUpdated]()
	sub := b.Subscribe()

	w := NewWatcher(loader, b, time.Hour, testLogger())
	w.pollOnce()

	select {
	case update := <-sub:
		if update.Document.Title != "fleet" {
			t.Fatalf("expected title fleet, got %q", update.Document.Title)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a ConfigurationUpdated publish after a successful load")
	}

	if w.State() != StateLoaded {
		t.Fatalf("expected state Loaded, got %s", w.State())
	}
}

func TestWatcherTransitionsToErrorNotFound(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"), MapProvider{}, testLogger())
	b := bus.New[ConfigurationUpdated]()

	w := NewWatcher(loader, b, time.Hour, testLogger())
	w.pollOnce()

	if w.State() != StateErrorNotFound {
		t.Fatalf("expected state ErrorNotFound, got %s", w.State())
	}
}

func TestWatcherDoesNotRepublishUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())
	b := bus.New[ConfigurationUpdated]()
	sub := b.Subscribe()

	w := NewWatcher(loader, b, time.Hour, testLogger())
	w.pollOnce()
	<-sub // drain the first publish

	w.pollOnce()
	select {
	case <-sub:
		t.Fatal("expected no second publish for an unchanged file")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherRunStopsOnSignal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())
	b := bus.New[ConfigurationUpdated]()
	w := NewWatcher(loader, b, 10*time.Millisecond, testLogger())

	stop := latch.NewStopSignal()
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	stop.Signal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after the stop signal fires")
	}
}
