package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/zatekoja/provider-directory/internal/api/handlers"
	"github.com/zatekoja/provider-directory/internal/api/middleware"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	providerHandler *handlers.ProviderHandler
	reviewHandler   *handlers.ReviewHandler
	adminHandler    *handlers.AdminHandler

	allowedOrigins []string
	metrics        *observability.Metrics
	readiness      map[string]func(context.Context) error
}

// NewRouter creates a new router. adminHandler may be nil to leave the
// management endpoints unmounted.
func NewRouter(
	providerHandler *handlers.ProviderHandler,
	reviewHandler *handlers.ReviewHandler,
	adminHandler *handlers.AdminHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		providerHandler: providerHandler,
		reviewHandler:   reviewHandler,
		adminHandler:    adminHandler,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
		readiness:       make(map[string]func(context.Context) error),
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready
func (r *Router) AddReadinessCheck(name string, check func(context.Context) error) {
	r.readiness[name] = check
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(r.readiness))
	for name := range r.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := r.readiness[name](ctx); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"checks": checks})
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.mux.HandleFunc("GET /ready", r.ready)

	// Discovery
	r.mux.HandleFunc("GET /api/providers", r.providerHandler.SearchProviders)
	r.mux.HandleFunc("GET /api/providers/featured", r.providerHandler.ListFeatured)
	r.mux.HandleFunc("GET /api/providers/{id}", r.providerHandler.GetProvider)
	r.mux.HandleFunc("GET /api/providers/{id}/adjacent", r.providerHandler.GetAdjacent)
	r.mux.HandleFunc("GET /api/facets/countries", r.providerHandler.ListCountries)
	r.mux.HandleFunc("GET /api/facets/cities", r.providerHandler.ListCities)

	// Reviews
	r.mux.HandleFunc("GET /api/providers/{id}/reviews", r.reviewHandler.ListReviews)
	r.mux.HandleFunc("POST /api/providers/{id}/reviews", r.reviewHandler.CreateReview)
	r.mux.HandleFunc("PUT /api/reviews/{id}", r.reviewHandler.UpdateReview)
	r.mux.HandleFunc("DELETE /api/reviews/{id}", r.reviewHandler.DeleteReview)

	// Provider management
	if r.adminHandler != nil {
		r.mux.HandleFunc("POST /api/admin/providers", r.adminHandler.RegisterProvider)
		r.mux.HandleFunc("PATCH /api/admin/providers/{id}", r.adminHandler.UpdateProvider)
		r.mux.HandleFunc("PUT /api/admin/providers/{id}/status", r.adminHandler.SetStatus)
		r.mux.HandleFunc("PUT /api/admin/providers/{id}/priority", r.adminHandler.SetPriority)
		r.mux.HandleFunc("PUT /api/admin/providers/{id}/verification", r.adminHandler.SetVerification)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflight never reaches the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
