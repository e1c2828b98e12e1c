// Package httpapi implements the minimal admin/status HTTP surface
// SPEC_FULL.md §2.5 adds on top of the teacher's pkg/admin shape:
// /ping, /ready, /metrics plus three read-only JSON endpoints backed by
// the build and view repositories, and the live /api/stream websocket
// endpoint.
package httpapi

import (
	"net/http"
	"time"

	cjson "github.com/clarketm/json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duckhq/duckwatch/internal/buildmodel"
	"github.com/duckhq/duckwatch/internal/observer/stream"
	"github.com/duckhq/duckwatch/internal/repository"
	"github.com/duckhq/duckwatch/internal/version"
)

// Server is the admin/status HTTP surface. Its handlers only ever read
// from the repositories; nothing under this package mutates fleet
// state.
type Server struct {
	builds *repository.BuildRepository
	views  *repository.ViewRepository
	stream *stream.Observer
	runID  uuid.UUID
	router *httprouter.Router
}

// NewServer wires the routes described in SPEC_FULL.md §2.5 around
// builds/views, with streamObserver backing the live /api/stream feed.
// runID identifies this process instance across restarts in /ready.
func NewServer(builds *repository.BuildRepository, views *repository.ViewRepository, streamObserver *stream.Observer, runID uuid.UUID) *Server {
	s := &Server{builds: builds, views: views, stream: streamObserver, runID: runID}

	r := httprouter.New()
	r.GET("/ping", s.handlePing)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/builds", s.handleBuilds)
	r.GET("/api/views", s.handleViews)
	r.GET("/api/stream", s.handleStream)
	s.router = r

	return s
}

// NewHTTPServer wraps Server's router in a *http.Server with the
// teacher's header-read timeout.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Write([]byte("pong\n"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"status": "ok",
		"run_id": s.runID.String(),
		"version": version.Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": s.builds.CurrentStatus().String()})
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var builds []buildmodel.Build
	if viewID := r.URL.Query().Get("view"); viewID != "" {
		found, ok := repository.ForView(s.builds, s.views, viewID)
		if !ok {
			http.Error(w, "unknown view", http.StatusNotFound)
			return
		}
		builds = found
	} else {
		builds = s.builds.All()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, builds)
}

func (s *Server) handleViews(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.views.GetViews())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.stream == nil {
		http.Error(w, "stream observer not configured", http.StatusNotImplemented)
		return
	}
	s.stream.ServeHTTP(w, r)
}

// writeJSON encodes v with clarketm/json, the teacher's drop-in
// encoding/json replacement that omits zero-value fields (notably
// Build.FinishedAt for builds still running) that a plain struct tag
// can't suppress without a pointer field losing its "nil means unset"
// meaning.
func writeJSON(w http.ResponseWriter, v interface{}) {
	enc := cjson.NewEncoder(w)
	_ = enc.Encode(v)
}
