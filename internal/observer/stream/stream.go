// Package stream implements a live-dashboard Observer: observations it
// receives are fanned out as JSON frames to every connected websocket
// client (spec SPEC_FULL.md §3, `/api/stream`), via
// github.com/gorilla/websocket.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/duckhq/duckwatch/internal/observer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// writeTimeout bounds how long a single frame write may block before
// the client is dropped as unresponsive.
const writeTimeout = 5 * time.Second

// frame is the wire shape pushed to each connected client.
type frame struct {
	Kind   string `json:"kind"`
	Status string `json:"status,omitempty"`
	Build  *buildFrame `json:"build,omitempty"`
}

type buildFrame struct {
	ID             uint64 `json:"id"`
	Provider       string `json:"provider"`
	Collector      string `json:"collector"`
	ProjectName    string `json:"project_name"`
	DefinitionName string `json:"definition_name"`
	BuildNumber    string `json:"build_number"`
	Status         string `json:"status"`
	Branch         string `json:"branch"`
	URL            string `json:"url"`
}

func kindName(k observer.ObservationKind) string {
	switch k {
	case observer.KindDuckStatusChanged:
		return "duck_status_changed"
	case observer.KindBuildUpdated:
		return "build_updated"
	case observer.KindAbsoluteStatusChanged:
		return "absolute_status_changed"
	case observer.KindShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

func toFrame(ob observer.Observation) frame {
	f := frame{Kind: kindName(ob.Kind)}
	switch ob.Kind {
	case observer.KindDuckStatusChanged:
		f.Status = ob.Status.String()
	case observer.KindBuildUpdated, observer.KindAbsoluteStatusChanged:
		b := ob.Build
		f.Build = &buildFrame{
			ID:             b.ID,
			Provider:       b.Provider.String(),
			Collector:      b.Collector,
			ProjectName:    b.ProjectName,
			DefinitionName: b.DefinitionName,
			BuildNumber:    b.BuildNumber,
			Status:         b.Status.String(),
			Branch:         b.Branch,
			URL:            b.URL,
		}
	}
	return f
}

// Config is the per-instance configuration for the stream observer.
type Config struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled"`
}

func (c Config) enabled() bool { return c.Enabled == nil || *c.Enabled }

// Observer fans observations out to every currently connected
// websocket client. It also serves as an http.Handler for the
// `/api/stream` route: connecting a client registers it as a
// subscriber for the lifetime of the connection.
type Observer struct {
	cfg  Config
	log  logrus.FieldLogger
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func New(cfg Config, log logrus.FieldLogger) *Observer {
	return &Observer{
		cfg:  cfg,
		log:  log.WithField("observer", cfg.ID).WithField("sink", "stream"),
		subs: make(map[*subscriber]struct{}),
	}
}

func (o *Observer) Info() observer.Info {
	return observer.Info{ID: o.cfg.ID, Enabled: o.cfg.enabled()}
}

func (o *Observer) Observe(ob observer.Observation) error {
	body, err := json.Marshal(toFrame(ob))
	if err != nil {
		return err
	}

	o.mu.Lock()
	targets := make([]*subscriber, 0, len(o.subs))
	for s := range o.subs {
		targets = append(targets, s)
	}
	o.mu.Unlock()

	for _, s := range targets {
		if err := s.send(body); err != nil {
			o.log.WithError(err).Debug("dropping unresponsive stream subscriber")
			o.remove(s)
		}
	}
	return nil
}

func (o *Observer) remove(s *subscriber) {
	o.mu.Lock()
	delete(o.subs, s)
	o.mu.Unlock()
	s.conn.Close()
}

// ServeHTTP upgrades the request to a websocket connection and keeps
// it registered as a subscriber until the client disconnects.
func (o *Observer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.log.WithError(err).Warn("stream upgrade failed")
		return
	}

	s := &subscriber{conn: conn}
	o.mu.Lock()
	o.subs[s] = struct{}{}
	o.mu.Unlock()

	// Drain and discard incoming frames; this is a push-only stream,
	// but reading is required to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			o.remove(s)
			return
		}
	}
}
