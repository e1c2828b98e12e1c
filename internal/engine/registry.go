package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/collector"
	"github.com/duckhq/duckwatch/internal/collector/appveyor"
	"github.com/duckhq/duckwatch/internal/collector/azure"
	"github.com/duckhq/duckwatch/internal/collector/debugger"
	"github.com/duckhq/duckwatch/internal/collector/duckpeer"
	"github.com/duckhq/duckwatch/internal/collector/github"
	"github.com/duckhq/duckwatch/internal/collector/octopus"
	"github.com/duckhq/duckwatch/internal/collector/teamcity"
	"github.com/duckhq/duckwatch/internal/config"
	"github.com/duckhq/duckwatch/internal/httpclient"
	"github.com/duckhq/duckwatch/internal/observer"
	"github.com/duckhq/duckwatch/internal/observer/hue"
	"github.com/duckhq/duckwatch/internal/observer/mattermost"
	"github.com/duckhq/duckwatch/internal/observer/slack"
)

// buildCollectors constructs the enabled collectors named in doc,
// sharing a single HTTP client across every provider that needs one
// (spec §5, SUPPLEMENTED per original_source: one client per collector,
// not per request). A per-provider construction error is logged and
// that entry is skipped, rather than aborting the whole reload.
func buildCollectors(doc config.Document, client httpclient.Client, log logrus.FieldLogger) []collector.Collector {
	out := make([]collector.Collector, 0, len(doc.Collectors))
	for _, c := range doc.Collectors {
		built, err := buildCollector(c, client, log)
		if err != nil {
			log.WithError(err).Warn("skipping collector that failed to construct")
			continue
		}
		if built == nil {
			continue
		}
		if !built.Info().Enabled {
			continue
		}
		out = append(out, built)
	}
	return out
}

func buildCollector(c config.CollectorDoc, client httpclient.Client, log logrus.FieldLogger) (collector.Collector, error) {
	switch {
	case c.TeamCity != nil:
		return teamcity.New(*c.TeamCity, client, log)
	case c.Azure != nil:
		return azure.New(*c.Azure, client, log)
	case c.GitHub != nil:
		return github.New(*c.GitHub, client, log)
	case c.Octopus != nil:
		return octopus.New(*c.Octopus, client, log)
	case c.AppVeyor != nil:
		return appveyor.New(*c.AppVeyor, client, log)
	case c.Duck != nil:
		return duckpeer.New(*c.Duck, client, log)
	case c.Debugger != nil:
		return debugger.New(*c.Debugger, log)
	default:
		return nil, nil
	}
}

// buildObservers constructs every enabled observer named in doc.
func buildObservers(doc config.Document, client httpclient.Client, log logrus.FieldLogger) []observer.Observer {
	out := make([]observer.Observer, 0, len(doc.Observers))
	for _, o := range doc.Observers {
		built, err := buildObserver(o, client, log)
		if err != nil {
			log.WithError(err).Warn("skipping observer that failed to construct")
			continue
		}
		if built == nil {
			continue
		}
		if !built.Info().Enabled {
			continue
		}
		out = append(out, built)
	}
	return out
}

func buildObserver(o config.ObserverDoc, client httpclient.Client, log logrus.FieldLogger) (observer.Observer, error) {
	switch {
	case o.Hue != nil:
		return hue.New(*o.Hue, client, log)
	case o.Slack != nil:
		return slack.New(*o.Slack, client, log)
	case o.Mattermost != nil:
		return mattermost.New(*o.Mattermost, client, log)
	default:
		return nil, nil
	}
}
