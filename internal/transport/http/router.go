// Package httptransport assembles the public HTTP surface: governance
// routes, health, and metrics.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/governor/handler"
	"warden/internal/platform/middleware"
	"warden/pkg/platform/httputil"
)

// HealthCheck reports the readiness of one dependency, keyed by name.
type HealthCheck func(ctx context.Context) error

// NewRouter wires all public endpoints. Resolution routes are guarded by
// requireAuth; interception and reads are open to the callers inside the
// deployment boundary.
func NewRouter(gov *handler.Handler, requireAuth func(http.Handler) http.Handler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	gov.Register(r, requireAuth)

	r.Get("/healthz", handleHealth(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, status, body)
	}
}
