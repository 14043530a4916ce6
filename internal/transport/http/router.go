package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"efrn/internal/orchestrator/handler"
	"efrn/internal/platform/metrics"
	"efrn/pkg/platform/httputil"
	request "efrn/pkg/platform/middleware/request"
	"efrn/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one backing dependency.
type HealthCheck func(ctx context.Context) error

// Config holds what the router mounts. Registry may be nil, in which case
// /metrics is not served. RateLimit wraps the /api routes when set.
type Config struct {
	ServiceName  string
	Orchestrator *handler.Handler
	Registry     *prometheus.Registry
	Checks       map[string]HealthCheck
	RateLimit    func(http.Handler) http.Handler
	Logger       *slog.Logger
}

type healthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// NewRouter wires the public endpoints behind the shared middleware chain.
// The whole router runs inside an otelhttp server span.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	if cfg.Registry != nil {
		r.Use(metrics.NewHTTP(cfg.Registry).Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Registry))
	}

	r.Get("/health", health(cfg))

	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		cfg.Orchestrator.Register(r)
	})
	return otelhttp.NewHandler(r, cfg.ServiceName)
}

// health reports ok only when every dependency answers.
func health(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Service: cfg.ServiceName}
		status := http.StatusOK
		if len(cfg.Checks) > 0 {
			resp.Dependencies = make(map[string]string, len(cfg.Checks))
		}
		for name, check := range cfg.Checks {
			if err := check(ctx); err != nil {
				cfg.Logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Dependencies[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
