package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleDoc = `{
	"title": "fleet",
	"interval": 30,
	"collectors": [
		{"teamcity": {"id": "tc-main", "serverUrl": "http://tc.local", "useGuestLogin": true, "definitions": [{"project": "proj", "definition": "build"}]}}
	]
}`

func TestLoaderLoadParsesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())
	doc, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Title != "fleet" {
		t.Fatalf("expected title fleet, got %q", doc.Title)
	}
	if doc.Interval != 30 {
		t.Fatalf("expected interval 30, got %d", doc.Interval)
	}
}

func TestLoaderLoadReturnsNotFoundForMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.json"), MapProvider{}, testLogger())
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}

func TestLoaderHasChangedTracksMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())

	changed, err := loader.HasChanged()
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if !changed {
		t.Fatal("expected HasChanged to report true before the first Load")
	}

	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed, err = loader.HasChanged()
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if changed {
		t.Fatal("expected HasChanged to report false immediately after a successful Load")
	}

	// Bump the mtime forward to simulate an edit.
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	changed, err = loader.HasChanged()
	if err != nil {
		t.Fatalf("HasChanged: %v", err)
	}
	if !changed {
		t.Fatal("expected HasChanged to report true after the file's mtime advances")
	}
}

func TestLoaderLoadFailsValidationOnUnknownCollectorReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "duck.json")
	bad := `{"title": "fleet", "views": [{"id": "main", "collectors": ["missing"]}]}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(path, MapProvider{}, testLogger())
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected validation to reject a view referencing an unknown collector")
	}
}
