package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// ReviewerHeader carries the authenticated reviewer id, set by the upstream auth layer
const ReviewerHeader = "X-Reviewer-ID"

const (
	msgAlreadyReviewed = "you already reviewed this provider"
	msgTryAgain        = "service temporarily unavailable, try again"
	msgInternal        = "internal server error"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the application error taxonomy onto HTTP statuses
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError(msgInternal, err)
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusForbidden, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeUnavailable:
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusServiceUnavailable, msgTryAgain)
	default:
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondWithError(w, http.StatusInternalServerError, msgInternal)
	}
}
