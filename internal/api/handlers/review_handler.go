package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/query/filters"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// ReviewService defines the review operations used by the handler
type ReviewService interface {
	RecordReview(ctx context.Context, providerID, reviewerID string, rating int, comment string) (*services.ReviewResult, error)
	UpdateReview(ctx context.Context, reviewID, reviewerID string, rating int, comment string) (*services.ReviewResult, error)
	DeleteReview(ctx context.Context, reviewID, reviewerID string) (*services.ReviewResult, error)
	ListProviderReviews(ctx context.Context, providerID string, page, pageSize int) (*entities.Page[*entities.Review], error)
}

// ReviewHandler serves review endpoints
type ReviewHandler struct {
	service ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type reviewResponse struct {
	Review        *entities.Review        `json:"review"`
	Rating        *entities.RatingSummary `json:"rating,omitempty"`
	RatingWarning string                  `json:"rating_warning,omitempty"`
}

// CreateReview handles POST /api/providers/{id}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := reviewer(w, r)
	if !ok {
		return
	}
	payload, ok := decodeReview(w, r)
	if !ok {
		return
	}

	result, err := h.service.RecordReview(r.Context(), r.PathValue("id"), reviewerID, payload.Rating, payload.Comment)
	if err != nil {
		respondWithReviewError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toReviewResponse(result))
}

// UpdateReview handles PUT /api/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := reviewer(w, r)
	if !ok {
		return
	}
	payload, ok := decodeReview(w, r)
	if !ok {
		return
	}

	result, err := h.service.UpdateReview(r.Context(), r.PathValue("id"), reviewerID, payload.Rating, payload.Comment)
	if err != nil {
		respondWithReviewError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toReviewResponse(result))
}

// DeleteReview handles DELETE /api/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := reviewer(w, r)
	if !ok {
		return
	}

	result, err := h.service.DeleteReview(r.Context(), r.PathValue("id"), reviewerID)
	if err != nil {
		respondWithReviewError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toReviewResponse(result))
}

// ListReviews handles GET /api/providers/{id}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := filters.ParsePage(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.service.ListProviderReviews(r.Context(), r.PathValue("id"), page, pageSize)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func reviewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(ReviewerHeader))
	if id == "" {
		respondWithError(w, http.StatusUnauthorized, "reviewer identity is required")
		return "", false
	}
	return id, true
}

func decodeReview(w http.ResponseWriter, r *http.Request) (reviewRequest, bool) {
	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return payload, false
	}
	return payload, true
}

func respondWithReviewError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		respondWithError(w, http.StatusConflict, msgAlreadyReviewed)
		return
	}
	respondWithAppError(w, r, err)
}

func toReviewResponse(result *services.ReviewResult) reviewResponse {
	resp := reviewResponse{
		Review: result.Review,
		Rating: result.Rating,
	}
	if result.RatingWarning != nil {
		resp.RatingWarning = "review saved; provider rating will refresh shortly"
	}
	return resp
}
