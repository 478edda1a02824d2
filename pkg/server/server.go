// Package server serves the live views of a [pipeline.Runner] over HTTP.
//
// The server exposes the visible frame of each role as JSON, an interactive
// HTML rendering, image export, the interaction and replay endpoints, a
// websocket that pushes a fresh frame after every committed change, and the
// Prometheus collectors.
//
// # Routes
//
//	GET  /                          redirect to /view/pattern
//	GET  /view/{role}               interactive HTML of the visible sub-graph
//	GET  /export/{role}.{format}    png, svg, html or json download
//	GET  /api/state                 match progress and texts
//	GET  /api/frames/{role}         visible frame (?all=1 for every sub-graph)
//	POST /api/select/{role}         {"label": "..."} switch the visible sub-graph
//	POST /api/click/{role}          {"node": "..."} fold or unfold a tree node
//	POST /api/reset/{role}          re-fit the viewport
//	POST /api/follow/{role}         {"on": true} toggle camera follow
//	POST /api/viewport              {"width": w, "height": h} resize the container
//	POST /api/step                  {"action": "next"} drive the match replay
//	GET  /ws                        frame and state push
//	GET  /metrics                   Prometheus collectors, when configured
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pdaviz/pkg/observability"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Options configures a [Server].
type Options struct {
	Addr            string
	Metrics         http.Handler // served at /metrics when non-nil
	Logger          *log.Logger
	ShutdownTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return o
}

// Server is the live view HTTP server.
type Server struct {
	runner *pipeline.Runner
	host   *viz.Host
	opts   Options
	logger *log.Logger
	hub    *hub
	router chi.Router
}

// New creates a server for runner. The server subscribes to the runner's
// host; call [Server.Close] to release the subscription.
func New(runner *pipeline.Runner, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{
		runner: runner,
		host:   runner.Host(),
		opts:   opts,
		logger: opts.Logger,
	}
	s.hub = newHub(s)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/view/pattern", http.StatusFound)
	})
	r.Get("/view/{role}", s.handleView)
	r.Get("/export/{role}.{format}", s.handleExport)
	r.Get("/ws", s.hub.serve)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/frames/{role}", s.handleFrames)
		r.Post("/select/{role}", s.handleSelect)
		r.Post("/click/{role}", s.handleClick)
		r.Post("/reset/{role}", s.handleReset)
		r.Post("/follow/{role}", s.handleFollow)
		r.Post("/viewport", s.handleViewport)
		r.Post("/step", s.handleStep)
	})
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.opts.Addr }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", s.opts.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close disconnects websocket clients and unsubscribes from the host.
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.Server().OnServe(r.Context(), route, ww.Status(), time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
