package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the HTTP router with all routes and
// middleware. Metrics are served from gatherer; nil disables /metrics.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Add middleware stack
	r.Use(middleware.RequestID)
	r.Use(RequestIDResponse) // Add X-Request-ID to response headers
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(middleware.Compress(5)) // Gzip compression
	r.Use(ContentTypeJSON)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", h.Health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", h.LandingPage)
	r.Get("/conformance", h.Conformance)
	r.Get("/environment", h.Environment)
	r.Get("/status", h.Status)

	r.Get("/collections", h.Collections)
	r.Get("/collections/{collectionId}", h.Collection)
	r.Get("/collections/{collectionId}/items", h.Items)
	r.Get("/collections/{collectionId}/items/{itemId}", h.Item)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
