// Package ops serves the operational endpoints of a learnstats process:
// Prometheus scraping, liveness and an on-demand maintenance pass.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/example/learnstats/internal/analytics"
	"github.com/example/learnstats/internal/apperror"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const checkTimeout = 3 * time.Second

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// Runner runs one maintenance pass
type Runner interface {
	EnsureRun(ctx context.Context) (analytics.Result, error)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewRouter wires /metrics, /healthz and POST /maintenance. runner may be
// nil, in which case the maintenance route is not mounted.
func NewRouter(gatherer prometheus.Gatherer, checks map[string]Check, runner Runner, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", healthHandler(checks))
	if runner != nil {
		r.Post("/maintenance", maintenanceHandler(runner, logger))
	}
	return r
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}

func maintenanceHandler(runner Runner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := runner.EnsureRun(r.Context())
		if err != nil {
			if logger != nil {
				logger.Error("maintenance request failed", zap.Error(err))
			}
			appErr, ok := apperror.As(err)
			if !ok {
				appErr = apperror.Internal("maintenance failed", err)
			}
			writeJSON(w, appErr.Status, appErr)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
