package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

// ProviderService defines the provider management operations used by the admin handler
type ProviderService interface {
	Register(ctx context.Context, in services.RegisterProviderInput) (*entities.Provider, error)
	UpdateFacets(ctx context.Context, id string, facets entities.ProviderFacets) (*entities.Provider, error)
	SetStatus(ctx context.Context, id string, status entities.ProviderStatus) (*entities.Provider, error)
	SetPriority(ctx context.Context, id string, score int) (*entities.Provider, error)
	SetVerification(ctx context.Context, id string, v entities.VerificationStatus) (*entities.Provider, error)
}

// AdminHandler serves provider onboarding and moderation endpoints
type AdminHandler struct {
	service ProviderService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service ProviderService) *AdminHandler {
	return &AdminHandler{service: service}
}

type registerRequest struct {
	DisplayName string  `json:"display_name"`
	Bio         string  `json:"bio"`
	Category    string  `json:"category"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	Gender      string  `json:"gender"`
	HourlyRate  float64 `json:"hourly_rate"`
	Currency    string  `json:"currency"`
}

type facetsRequest struct {
	DisplayName *string  `json:"display_name"`
	Bio         *string  `json:"bio"`
	Category    *string  `json:"category"`
	Country     *string  `json:"country"`
	City        *string  `json:"city"`
	Gender      *string  `json:"gender"`
	HourlyRate  *float64 `json:"hourly_rate"`
	Currency    *string  `json:"currency"`
}

// RegisterProvider handles POST /api/admin/providers
func (h *AdminHandler) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	provider, err := h.service.Register(r.Context(), services.RegisterProviderInput(payload))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, provider)
}

// UpdateProvider handles PATCH /api/admin/providers/{id}
func (h *AdminHandler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var payload facetsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	facets := entities.ProviderFacets{
		DisplayName: payload.DisplayName,
		Bio:         payload.Bio,
		Category:    payload.Category,
		Country:     payload.Country,
		City:        payload.City,
		HourlyRate:  payload.HourlyRate,
		Currency:    payload.Currency,
	}
	if payload.Gender != nil {
		g := entities.Gender(*payload.Gender)
		facets.Gender = &g
	}

	provider, err := h.service.UpdateFacets(r.Context(), r.PathValue("id"), facets)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

// SetStatus handles PUT /api/admin/providers/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	provider, err := h.service.SetStatus(r.Context(), r.PathValue("id"), entities.ProviderStatus(payload.Status))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

// SetPriority handles PUT /api/admin/providers/{id}/priority
func (h *AdminHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PriorityScore int `json:"priority_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	provider, err := h.service.SetPriority(r.Context(), r.PathValue("id"), payload.PriorityScore)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}

// SetVerification handles PUT /api/admin/providers/{id}/verification
func (h *AdminHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	provider, err := h.service.SetVerification(r.Context(), r.PathValue("id"), entities.VerificationStatus(payload.VerificationStatus))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, provider)
}
