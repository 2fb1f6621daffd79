// ABOUTME: HTTP datastore serving a tracker backend over the client's routes.
// ABOUTME: Chi router with request ids, panic recovery, bearer auth and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/remote"
)

// Options configures a Server.
type Options struct {
	// Token, when set, must be presented as a bearer token.
	Token string
	// Metrics exposes /metrics when set.
	Metrics bool
}

// Server exposes a remote.Backend over HTTP.
type Server struct {
	backend  remote.Backend
	opts     Options
	validate *validator.Validate
}

// New creates a server for backend.
func New(backend remote.Backend, opts Options) *Server {
	return &Server{backend: backend, opts: opts, validate: validator.New()}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if s.opts.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(recordRequests)
		r.Use(s.authenticate)

		r.Get(remote.RouteTrackers, s.fetchTrackers)

		r.Route(remote.RouteInstalls, func(r chi.Router) {
			r.Patch("/", s.upsertTrackers)
			r.Put("/{metricID}", s.upsertTracker)
			r.Delete("/{metricID}", s.uninstallTracker)
		})

		r.Post(remote.RouteValuesSearch, s.searchValues)

		r.Route(remote.RouteFHIR+"/{resourceType}", func(r chi.Router) {
			r.Post("/", s.createResource)
			r.Put("/{id}", s.updateResource)
			r.Delete("/{id}", s.deleteResource)
		})

		r.Get(remote.RouteOntology+"/{code}", s.fetchOntology)
	})

	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Component("server").Info().Str("addr", addr).Msg("datastore listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != s.opts.Token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recordRequests labels metrics with the matched route pattern so ids in
// paths do not explode label cardinality.
func recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
