// Package server exposes the generated calendar and run status over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
)

// History returns the most recent run
type History interface {
	LastRun() (*pipeline.Report, error)
}

// Trigger starts a sync in the background
type Trigger interface {
	Trigger() error
}

// Deps are what the handlers serve from. History, Trigger, Metrics and Next
// are optional.
type Deps struct {
	FeedPath  string
	History   History
	Trigger   Trigger
	Metrics   *logger.Metrics
	Next      func() time.Time
	StartTime time.Time
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http *http.Server
}

// New builds the HTTP server (router, middlewares, routes).
func New(addr string, d Deps) *Server {
	if d.StartTime.IsZero() {
		d.StartTime = time.Now()
	}

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           Router(d),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Router returns the request handler
func Router(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/calendar.ics", calendarHandler(d))
	r.Get("/healthz", healthzHandler(d))
	r.Get("/status", statusHandler(d))
	r.Post("/sync", syncHandler(d))

	return r
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	logger.Info("HTTP server listening", logger.Fields{"addr": s.http.Addr})
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("HTTP server shutting down", nil)
	return s.http.Shutdown(ctx)
}
