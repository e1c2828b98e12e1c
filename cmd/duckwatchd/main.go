// Command duckwatchd runs the duckwatch fleet build-status aggregator:
// the engine pipeline plus a minimal admin/status HTTP surface.
//
// Grounded on the teacher's cli/cmd/root.go entrypoint shape (cobra
// root command, fatih/color-gated startup banner, logrus level flag)
// adapted from a Kubernetes-aware CLI to a single long-running daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/config/filewatch"
	"github.com/duckhq/duckwatch/internal/engine"
	"github.com/duckhq/duckwatch/internal/httpapi"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
	"github.com/duckhq/duckwatch/internal/observer/stream"
	"github.com/duckhq/duckwatch/internal/version"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var (
	configPath string
	logLevel   string
	adminAddr  string
	watchFS    bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duckwatchd",
		Short: "duckwatchd aggregates CI/CD fleet build status",
		Long:  "duckwatchd polls TeamCity, Azure DevOps, GitHub Actions, Octopus Deploy, AppVeyor and peer duckwatchd instances for build status, and publishes change events to Hue, Slack and Mattermost.",
		RunE:  runDaemon,
	}

	cmd.Flags().StringVar(&configPath, "config", "duck.json", "path to the configuration document")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":9990", "address the admin/status HTTP server listens on")
	cmd.Flags().BoolVar(&watchFS, "watch-fs", false, "run a filesystem watch on the configuration file (local development); reloads still follow the poll tick")
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the duckwatchd version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stdout, version.Version)
			return nil
		},
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	log.SetLevel(level)

	runID := uuid.New()
	entry := log.WithField("run_id", runID.String())

	printBanner(runID)

	loader := config.NewLoader(configPath, nil, entry)
	client := httpclient.New(defaultHTTPTimeout)
	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)

	streamObserver := stream.New(stream.Config{ID: "stream"}, entry)
	eng := engine.New(loader, client, metrics, []observer.Observer{streamObserver}, entry)

	httpServer := httpapi.NewHTTPServer(adminAddr, httpapi.NewServer(eng.Builds, eng.Views, streamObserver, runID))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if watchFS {
		notifier := filewatch.New(configPath, entry)
		go func() {
			if err := notifier.Run(ctx); err != nil && ctx.Err() == nil {
				entry.WithError(err).Warn("filesystem watch stopped")
			}
		}()
	}

	go func() {
		entry.WithField("addr", adminAddr).Info("admin server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("admin server failed")
		}
	}()

	go func() {
		eng.Run()
	}()

	<-ctx.Done()
	entry.Info("shutting down")
	eng.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	return nil
}

func printBanner(runID uuid.UUID) {
	useColor := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	banner := fmt.Sprintf("duckwatchd %s (run %s)", version.Version, runID.String())
	if useColor {
		fmt.Fprintln(os.Stdout, color.New(color.FgCyan, color.Bold).Sprint(banner))
		return
	}
	fmt.Fprintln(os.Stdout, banner)
}
