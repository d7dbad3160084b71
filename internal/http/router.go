package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wrls/internal/notices/handler"
	"wrls/internal/platform/metrics"
	"wrls/pkg/platform/httputil"
	authmw "wrls/pkg/platform/middleware/auth"
	"wrls/pkg/platform/middleware/request"
	"wrls/pkg/platform/middleware/requesttime"
	"wrls/pkg/requestcontext"
)

// HealthCheck checks one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces the router mounts.
type Deps struct {
	Notices   *handler.Handler
	Validator authmw.TokenValidator
	StaffRole string
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Health    map[string]HealthCheck
	Logger    *slog.Logger
}

// NewRouter wires the public endpoints. /notices routes require a staff
// bearer token; /health and /metrics are open.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/health", handleHealth(d.Health, d.Logger))
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(authmw.RequireAuth(d.Validator, d.StaffRole, d.Logger))
		d.Notices.Register(r)
	})
	return r
}

func handleHealth(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", requestcontext.RequestID(ctx),
					"dependency", name,
					"error", err,
				)
				body[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		if status == http.StatusOK {
			body["status"] = "ok"
		} else {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
