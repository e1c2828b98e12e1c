// Package filewatch is a local-development convenience beside the
// watcher's mtime-poll state machine: it fires a notification on
// Notifier.Changed the moment the configuration file is written. It is
// never the production change-detection mechanism (config.Watcher's
// deterministic ticks remain that). config.Watcher.RunWithWake accepts
// such a channel as an extra wake-up source, but Engine.Run starts the
// watcher with Run (no wake channel), so under --watch-fs the
// notifications are not consumed and reloads follow the poll tick.
//
// Grounded on the teacher's pkg/credswatcher, adapted from watching a
// Kubernetes secret's atomic-rename directory to watching a single
// configuration file.
package filewatch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Notifier watches a single file and signals on Changed whenever it is
// written or recreated (editors commonly replace a file via
// rename-into-place rather than an in-place write).
type Notifier struct {
	path    string
	log     logrus.FieldLogger
	Changed chan struct{}
}

// New returns a Notifier for path. Run must be called to start
// watching.
func New(path string, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		path:    path,
		log:     log.WithField("component", "config-filewatch"),
		Changed: make(chan struct{}, 1),
	}
}

// Run blocks until ctx is canceled, watching the parent directory of
// the configured file (so renames-into-place are seen, not just
// in-place writes) and signaling Changed on any event naming that file.
func (n *Notifier) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(n.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(n.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case n.Changed <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			n.log.WithError(err).Warn("filesystem watch error")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
