package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laas-platform/laas/internal/service"
	"github.com/laas-platform/laas/pkg/health"
	"github.com/laas-platform/laas/pkg/middleware"
)

const serviceName = "search"

// RouterConfig carries the HTTP-facing settings of the service.
type RouterConfig struct {
	CORS          middleware.CORSConfig
	ProfilerCIDRs []string
	Timeout       time.Duration
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *service.SearchService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.Timeout))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.ProfilerCIDRs) > 0 {
		middleware.MountProfiler(r, cfg.ProfilerCIDRs, logger)
	}

	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Use(middleware.Tenant(logger))
		r.Use(middleware.RequestLogger(logger))

		r.Get("/", searchHandler.Search)
		r.Post("/", searchHandler.SearchPost)
		r.Get("/facets", searchHandler.Facets)
		r.Get("/suggest", searchHandler.Suggest)

		r.Post("/index", searchHandler.IndexListing)
		r.Post("/bulk", searchHandler.BulkIndex)
		r.Delete("/listings/{id}", searchHandler.DeleteListing)
		r.Post("/reindex", searchHandler.Reindex)
	})

	return r
}
