package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// ReviewStore is an in-memory ReviewRepository
type ReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]*entities.Review
	// owner indexes review IDs by provider and reviewer
	owner map[ownerKey]string
}

type ownerKey struct {
	providerID string
	reviewerID string
}

// NewReviewStore creates an empty store
func NewReviewStore() *ReviewStore {
	return &ReviewStore{
		reviews: make(map[string]*entities.Review),
		owner:   make(map[ownerKey]string),
	}
}

// Create inserts a review, rejecting a second review by the same reviewer
func (s *ReviewStore) Create(ctx context.Context, review *entities.Review) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("create review", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{providerID: review.ProviderID, reviewerID: review.ReviewerID}
	if _, exists := s.owner[key]; exists {
		return apperrors.NewConflictError("reviewer has already reviewed this provider")
	}
	if _, exists := s.reviews[review.ID]; exists {
		return apperrors.NewConflictError("review already exists")
	}

	c := *review
	s.reviews[review.ID] = &c
	s.owner[key] = review.ID
	return nil
}

// GetByID retrieves a review by ID
func (s *ReviewStore) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("get review", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("review not found")
	}
	c := *r
	return &c, nil
}

// Update rewrites rating and comment
func (s *ReviewStore) Update(ctx context.Context, review *entities.Review) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("update review", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[review.ID]
	if !ok {
		return apperrors.NewNotFoundError("review not found")
	}
	r.Rating = review.Rating
	r.Comment = review.Comment
	r.UpdatedAt = review.UpdatedAt
	return nil
}

// Delete removes a review
func (s *ReviewStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("delete review", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reviews[id]
	if !ok {
		return apperrors.NewNotFoundError("review not found")
	}
	delete(s.owner, ownerKey{providerID: r.ProviderID, reviewerID: r.ReviewerID})
	delete(s.reviews, id)
	return nil
}

// ListByProvider returns a provider's reviews, newest first
func (s *ReviewStore) ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]*entities.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("list reviews", err)
	}

	s.mu.RLock()
	var out []*entities.Review
	for _, r := range s.reviews {
		if r.ProviderID == providerID {
			c := *r
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if offset >= len(out) {
		return []*entities.Review{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// CountByProvider returns the number of reviews of a provider
func (s *ReviewStore) CountByProvider(ctx context.Context, providerID string) (int, error) {
	ratings, err := s.RatingsByProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}
	return len(ratings), nil
}

// RatingsByProvider returns every rating held by a provider
func (s *ReviewStore) RatingsByProvider(ctx context.Context, providerID string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("load ratings", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ratings := []int{}
	for _, r := range s.reviews {
		if r.ProviderID == providerID {
			ratings = append(ratings, r.Rating)
		}
	}
	return ratings, nil
}
