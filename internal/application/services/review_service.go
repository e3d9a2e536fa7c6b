package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	"github.com/zatekoja/provider-directory/pkg/config"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// MaxCommentLength is the longest accepted review comment, in characters
const MaxCommentLength = 2000

// ReviewResult is the outcome of a review mutation. RatingWarning is set when
// the mutation succeeded but the provider's aggregate could not be refreshed.
type ReviewResult struct {
	Review        *entities.Review
	Rating        *entities.RatingSummary
	RatingWarning error
}

// ReviewService records reviewer actions and keeps the provider rating in step
type ReviewService struct {
	reviews    repositories.ReviewRepository
	providers  repositories.ProviderRepository
	aggregator *RatingAggregator
	limits     pageLimits
	timeout    time.Duration
}

// NewReviewService creates a new review service
func NewReviewService(
	reviewRepo repositories.ReviewRepository,
	providerRepo repositories.ProviderRepository,
	aggregator *RatingAggregator,
	cfg config.DiscoveryConfig,
) *ReviewService {
	return &ReviewService{
		reviews:    reviewRepo,
		providers:  providerRepo,
		aggregator: aggregator,
		limits:     pageLimits{defaultSize: cfg.DefaultPageSize, maxSize: cfg.MaxPageSize},
		timeout:    cfg.OperationTimeout,
	}
}

// RecordReview creates a reviewer's review of an approved provider
func (s *ReviewService) RecordReview(ctx context.Context, providerID, reviewerID string, rating int, comment string) (*ReviewResult, error) {
	ctx, span := observability.StartSpan(ctx, "ReviewService.RecordReview")
	defer span.End()

	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return nil, apperrors.NewValidationError("reviewer is required")
	}
	comment, err := validateReview(rating, comment)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	provider, err := s.providers.GetByID(opCtx, providerID)
	if err != nil {
		return nil, apperrors.FromContext("failed to load provider", err)
	}
	if !provider.IsApproved() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", providerID))
	}

	now := time.Now().UTC()
	review := &entities.Review{
		ID:         uuid.NewString(),
		ProviderID: provider.ID,
		ReviewerID: reviewerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.reviews.Create(opCtx, review); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.FromContext("failed to create review", err)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("review_id", review.ID).
		Str("provider_id", provider.ID).
		Int("rating", rating).
		Msg("Review recorded")

	return s.settle(opCtx, review), nil
}

// UpdateReview changes the rating and comment of the caller's own review
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID, reviewerID string, rating int, comment string) (*ReviewResult, error) {
	ctx, span := observability.StartSpan(ctx, "ReviewService.UpdateReview")
	defer span.End()

	comment, err := validateReview(rating, comment)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	review, err := s.ownedReview(opCtx, reviewID, reviewerID)
	if err != nil {
		return nil, err
	}

	review.Rating = rating
	review.Comment = comment
	review.UpdatedAt = time.Now().UTC()

	if err := s.reviews.Update(opCtx, review); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.FromContext("failed to update review", err)
	}

	return s.settle(opCtx, review), nil
}

// DeleteReview removes the caller's own review
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, reviewerID string) (*ReviewResult, error) {
	ctx, span := observability.StartSpan(ctx, "ReviewService.DeleteReview")
	defer span.End()

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	review, err := s.ownedReview(opCtx, reviewID, reviewerID)
	if err != nil {
		return nil, err
	}

	if err := s.reviews.Delete(opCtx, review.ID); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.FromContext("failed to delete review", err)
	}

	return s.settle(opCtx, review), nil
}

// GetReview retrieves a review by ID
func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*entities.Review, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	review, err := s.reviews.GetByID(opCtx, reviewID)
	if err != nil {
		return nil, apperrors.FromContext("failed to load review", err)
	}
	return review, nil
}

// ListProviderReviews returns one page of a provider's reviews, newest first
func (s *ReviewService) ListProviderReviews(ctx context.Context, providerID string, page, pageSize int) (*entities.Page[*entities.Review], error) {
	page, pageSize = s.limits.normalize(page, pageSize)

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	total, err := s.reviews.CountByProvider(opCtx, providerID)
	if err != nil {
		return nil, apperrors.FromContext("failed to count reviews", err)
	}

	result := &entities.Page[*entities.Review]{
		Items:      []*entities.Review{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: entities.TotalPagesFor(total, pageSize),
	}

	offset, ok := entities.PageBounds(page, pageSize, total)
	if !ok {
		return result, nil
	}

	items, err := s.reviews.ListByProvider(opCtx, providerID, pageSize, offset)
	if err != nil {
		return nil, apperrors.FromContext("failed to list reviews", err)
	}
	result.Items = items
	return result, nil
}

func (s *ReviewService) ownedReview(ctx context.Context, reviewID, reviewerID string) (*entities.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, apperrors.FromContext("failed to load review", err)
	}
	if review.ReviewerID != strings.TrimSpace(reviewerID) {
		return nil, apperrors.NewUnauthorizedError("review belongs to another reviewer")
	}
	return review, nil
}

// settle runs the aggregator after a successful review write
func (s *ReviewService) settle(ctx context.Context, review *entities.Review) *ReviewResult {
	summary, warning := s.aggregator.RecomputeOrFlag(ctx, review.ProviderID)
	return &ReviewResult{
		Review:        review,
		Rating:        summary,
		RatingWarning: warning,
	}
}

func (s *ReviewService) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.timeout)
}

func validateReview(rating int, comment string) (string, error) {
	if rating < entities.MinReviewRating || rating > entities.MaxReviewRating {
		return "", apperrors.NewValidationError(fmt.Sprintf("rating must be between %d and %d", entities.MinReviewRating, entities.MaxReviewRating))
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return "", apperrors.NewValidationError(fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}
	return comment, nil
}
