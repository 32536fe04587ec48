package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recrutaedu/checkout-sessions/pkg/health"
	"github.com/recrutaedu/checkout-sessions/pkg/middleware"
)

const serviceName = "checkout-sessions"

// RouterConfig carries the router's cross-cutting settings.
type RouterConfig struct {
	Environment        string
	CORSAllowedOrigins []string
}

// NewRouter creates a chi router with all session routes registered.
func NewRouter(
	handler *SessionHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", handler.CreateSession)
		r.Post("/checkout-url", handler.CreateCheckoutURL)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetSession)
			r.Delete("/", handler.RemoveSession)
			r.Get("/validate", handler.ValidateSession)
			r.Post("/url", handler.IssueCheckoutURL)
			r.Get("/token/validate", handler.ValidateToken)
			r.Patch("/status", handler.UpdateStatus)
			r.Post("/process", handler.ProcessSession)
			r.Post("/complete", handler.CompleteSession)
			r.Post("/cancel", handler.CancelSession)
		})
	})

	return r
}

// ContentTypeJSON sets the JSON content type on every API response.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
