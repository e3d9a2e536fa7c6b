package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/query/filters"
)

// DiscoveryService defines the read operations used by the provider handler
type DiscoveryService interface {
	Search(ctx context.Context, f entities.SearchFilters, page, pageSize int) (*entities.Page[*entities.Provider], error)
	List(ctx context.Context, page, pageSize int) (*entities.Page[*entities.Provider], error)
	Adjacent(ctx context.Context, id string) (*entities.AdjacentProviders, error)
	DistinctCountries(ctx context.Context) ([]string, error)
	DistinctCities(ctx context.Context, country *string) ([]string, error)
	GetProvider(ctx context.Context, idOrSlug string) (*entities.Provider, error)
}

// ProviderHandler serves provider discovery endpoints
type ProviderHandler struct {
	discovery DiscoveryService
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(discovery DiscoveryService) *ProviderHandler {
	return &ProviderHandler{discovery: discovery}
}

// SearchProviders handles GET /api/providers
func (h *ProviderHandler) SearchProviders(w http.ResponseWriter, r *http.Request) {
	f, params, err := filters.ParseValues(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.discovery.Search(r.Context(), f, params.Page, params.PageSize)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// ListFeatured handles GET /api/providers/featured
func (h *ProviderHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := filters.ParsePage(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.discovery.List(r.Context(), page, pageSize)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetProvider handles GET /api/providers/{id}. The id may also be a slug.
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "provider ID is required")
		return
	}

	provider, err := h.discovery.GetProvider(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

// GetAdjacent handles GET /api/providers/{id}/adjacent
func (h *ProviderHandler) GetAdjacent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "provider ID is required")
		return
	}

	adj, err := h.discovery.Adjacent(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, adj)
}

// ListCountries handles GET /api/facets/countries
func (h *ProviderHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.discovery.DistinctCountries(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"countries": countries,
		"count":     len(countries),
	})
}

// ListCities handles GET /api/facets/cities?country=
func (h *ProviderHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	var country *string
	if c := strings.TrimSpace(r.URL.Query().Get("country")); c != "" && !strings.EqualFold(c, filters.AnyValue) {
		country = &c
	}

	cities, err := h.discovery.DistinctCities(r.Context(), country)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"cities": cities,
		"count":  len(cities),
	})
}
