// Package opshttp serves the operational endpoints: health checks, Prometheus
// metrics and read-only JSON views of usage and rate limit state.
package opshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/relaybot/internal/database"
	"github.com/edgard/relaybot/internal/ratelimit"
)

// Store is the slice of database.Store the ops endpoints read.
type Store interface {
	Ping(ctx context.Context) error
	GetUsageSummary(ctx context.Context, now time.Time) (*database.UsageSummary, error)
}

// Options configures the ops server. Nil fields disable the routes that
// need them.
type Options struct {
	Addr    string
	Logger  *slog.Logger
	Metrics http.Handler
	Store   Store
	Limiter *ratelimit.Limiter
	Clock   clockwork.Clock
}

type policyView struct {
	Category  string `json:"category"`
	MaxEvents int    `json:"max_events"`
	Window    string `json:"window"`
}

type rateLimitView struct {
	Policies []policyView `json:"policies"`
	Records  int          `json:"tracked_records"`
}

// NewHandler builds the ops router.
func NewHandler(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Store == nil {
			writeJSON(w, log, http.StatusServiceUnavailable, map[string]string{"status": "no store"})
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := opts.Store.Ping(ctx); err != nil {
			log.WarnContext(ctx, "Readiness check failed", "error", err)
			writeJSON(w, log, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		writeJSON(w, log, http.StatusOK, map[string]string{"status": "ready"})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if opts.Store != nil {
			r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
				summary, err := opts.Store.GetUsageSummary(req.Context(), clock.Now())
				if err != nil {
					log.ErrorContext(req.Context(), "Failed to build usage summary", "error", err)
					writeJSON(w, log, http.StatusInternalServerError, map[string]string{"error": "summary unavailable"})
					return
				}
				writeJSON(w, log, http.StatusOK, summary)
			})
		}
		if opts.Limiter != nil {
			r.Get("/ratelimits", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, log, http.StatusOK, rateLimits(opts.Limiter))
			})
		}
	})

	return r
}

func rateLimits(l *ratelimit.Limiter) rateLimitView {
	view := rateLimitView{Records: l.Len()}
	for c, p := range l.Policies() {
		view.Policies = append(view.Policies, policyView{
			Category:  string(c),
			MaxEvents: p.MaxEvents,
			Window:    p.Window.String(),
		})
	}
	sort.Slice(view.Policies, func(i, j int) bool { return view.Policies[i].Category < view.Policies[j].Category })
	return view
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write ops response", "error", err)
	}
}

// Start serves the ops endpoints on opts.Addr in the background.
// Returns stop(ctx) for graceful shutdown.
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ops_http")

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen for ops server on addr=%v: %w", opts.Addr, err)
	}

	go func() {
		log.InfoContext(ctx, "Ops HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.ErrorContext(ctx, "Ops HTTP server error", "error", err)
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			log.InfoContext(sctx, "Ops HTTP server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
