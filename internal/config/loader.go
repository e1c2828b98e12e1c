package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/duckerr"
)

// Loader reads, expands, defaults and validates the configuration
// document at Path, and tracks the source file's mtime so callers can
// cheaply detect whether a reload is needed (spec §4.6).
type Loader struct {
	Path    string
	Vars    VariableProvider
	log     logrus.FieldLogger
	lastMod time.Time
}

// NewLoader returns a Loader reading path, expanding placeholders with
// vars (nil uses the process environment).
func NewLoader(path string, vars VariableProvider, log logrus.FieldLogger) *Loader {
	if vars == nil {
		vars = NewEnvProvider()
	}
	return &Loader{Path: path, Vars: vars, log: log.WithField("component", "config-loader")}
}

// HasChanged reports whether the source file's mtime is later than the
// last value observed by Load. Before the first successful Load it
// always reports true, per spec §4.6 ("initial value 0").
func (l *Loader) HasChanged() (bool, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, duckerr.Wrap(duckerr.ErrConfigNotFound, err)
		}
		return false, duckerr.Wrap(duckerr.ErrConfigParse, err)
	}
	return info.ModTime().After(l.lastMod), nil
}

// Load reads, expands, defaults and validates the document, recording
// the file's current mtime on success.
func (l *Loader) Load() (Document, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, duckerr.Wrap(duckerr.ErrConfigNotFound, err)
		}
		return Document{}, duckerr.Wrap(duckerr.ErrConfigParse, err)
	}

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return Document{}, duckerr.Wrap(duckerr.ErrConfigParse, err)
	}

	expanded, err := Expand(raw, l.Vars)
	if err != nil {
		return Document{}, err
	}

	doc, err := parseDocument(expanded)
	if err != nil {
		return Document{}, err
	}

	doc, err = applyDefaults(doc)
	if err != nil {
		return Document{}, duckerr.Wrap(duckerr.ErrConfigParse, err)
	}

	if err := validate(doc, l.log); err != nil {
		return Document{}, err
	}

	l.lastMod = info.ModTime()
	return doc, nil
}
