package repositories

import (
	"context"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Create inserts a review. A second review by the same reviewer for the
	// same provider fails with a conflict error.
	Create(ctx context.Context, review *entities.Review) error

	// GetByID retrieves a review by ID
	GetByID(ctx context.Context, id string) (*entities.Review, error)

	// Update rewrites rating and comment of an existing review
	Update(ctx context.Context, review *entities.Review) error

	// Delete removes a review
	Delete(ctx context.Context, id string) error

	// ListByProvider returns a provider's reviews, newest first
	ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]*entities.Review, error)

	// CountByProvider returns the number of reviews of a provider
	CountByProvider(ctx context.Context, providerID string) (int, error)

	// RatingsByProvider returns every rating currently held by a provider
	RatingsByProvider(ctx context.Context, providerID string) ([]int, error)
}
