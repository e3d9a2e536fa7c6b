package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

func TestReviewService_RecordReview_UpdatesRating(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	for i, rating := range []int{4, 4, 4, 5} {
		res, err := f.service.RecordReview(ctx, "p1", fmt.Sprintf("r%d", i), rating, "solid work")
		require.NoError(t, err)
		require.NoError(t, res.RatingWarning)
	}

	p, err := f.providers.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4.3, p.AverageRating)
	assert.Equal(t, 4, p.ReviewCount)
}

func TestReviewService_RecordReview_ReturnsSummary(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	_, err := f.service.RecordReview(ctx, "p1", "a", 3, "")
	require.NoError(t, err)
	_, err = f.service.RecordReview(ctx, "p1", "b", 5, "")
	require.NoError(t, err)
	res, err := f.service.RecordReview(ctx, "p1", "c", 5, "  great  ")
	require.NoError(t, err)

	require.NotNil(t, res.Rating)
	assert.Equal(t, 4.3, res.Rating.AverageRating)
	assert.Equal(t, 3, res.Rating.ReviewCount)
	assert.Equal(t, "great", res.Review.Comment)
}

func TestReviewService_ConcurrentReviewersAllCounted(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	const reviewers = 20
	var wg sync.WaitGroup
	errs := make(chan error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rating := 1 + i%5
			res, err := f.service.RecordReview(ctx, "p1", fmt.Sprintf("reviewer-%d", i), rating, "")
			if err == nil && res.RatingWarning != nil {
				err = res.RatingWarning
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := f.providers.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, reviewers, p.ReviewCount)
	assert.Equal(t, 3.0, p.AverageRating)
}

func TestReviewService_TwoReviewersSameProvider(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	_, err := f.service.RecordReview(ctx, "p1", "seed", 4, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, reviewer := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(reviewer string) {
			defer wg.Done()
			_, err := f.service.RecordReview(ctx, "p1", reviewer, 5, "")
			assert.NoError(t, err)
		}(reviewer)
	}
	wg.Wait()

	p, err := f.providers.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.ReviewCount)
	assert.Equal(t, 4.7, p.AverageRating)
}

func TestReviewService_DuplicateReviewConflicts(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	_, err := f.service.RecordReview(ctx, "p1", "alice", 5, "")
	require.NoError(t, err)

	_, err = f.service.RecordReview(ctx, "p1", "alice", 1, "changed my mind")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	p, err := f.providers.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewCount)
	assert.Equal(t, 5.0, p.AverageRating)
}

func TestReviewService_RecordReview_Validation(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)
	seedProvider(t, f.providers, "p2", entities.ProviderStatusPending, 0)

	tests := []struct {
		name       string
		providerID string
		reviewerID string
		rating     int
		comment    string
		wantType   apperrors.ErrorType
	}{
		{"rating too low", "p1", "a", 0, "", apperrors.ErrorTypeValidation},
		{"rating too high", "p1", "a", 6, "", apperrors.ErrorTypeValidation},
		{"missing reviewer", "p1", " ", 4, "", apperrors.ErrorTypeValidation},
		{"comment too long", "p1", "a", 4, strings.Repeat("x", services.MaxCommentLength+1), apperrors.ErrorTypeValidation},
		{"unknown provider", "missing", "a", 4, "", apperrors.ErrorTypeNotFound},
		{"pending provider", "p2", "a", 4, "", apperrors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RecordReview(ctx, tt.providerID, tt.reviewerID, tt.rating, tt.comment)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
		})
	}
}

func TestReviewService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	first, err := f.service.RecordReview(ctx, "p1", "alice", 2, "")
	require.NoError(t, err)
	_, err = f.service.RecordReview(ctx, "p1", "bob", 4, "")
	require.NoError(t, err)

	updated, err := f.service.UpdateReview(ctx, first.Review.ID, "alice", 5, "better second time")
	require.NoError(t, err)
	require.NotNil(t, updated.Rating)
	assert.Equal(t, 4.5, updated.Rating.AverageRating)
	assert.Equal(t, 2, updated.Rating.ReviewCount)

	deleted, err := f.service.DeleteReview(ctx, first.Review.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, deleted.Rating)
	assert.Equal(t, 4.0, deleted.Rating.AverageRating)
	assert.Equal(t, 1, deleted.Rating.ReviewCount)

	_, err = f.service.GetReview(ctx, first.Review.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestReviewService_OtherReviewerCannotModify(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	res, err := f.service.RecordReview(ctx, "p1", "alice", 2, "")
	require.NoError(t, err)

	_, err = f.service.UpdateReview(ctx, res.Review.ID, "mallory", 5, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = f.service.DeleteReview(ctx, res.Review.ID, "mallory")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	stored, err := f.service.GetReview(ctx, res.Review.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Rating)
}

func TestReviewService_ListProviderReviews(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)

	for i := 0; i < 5; i++ {
		_, err := f.service.RecordReview(ctx, "p1", fmt.Sprintf("r%d", i), 3, "")
		require.NoError(t, err)
	}

	page, err := f.service.ListProviderReviews(ctx, "p1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)

	beyond, err := f.service.ListProviderReviews(ctx, "p1", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
}

func TestReviewService_RatingWriteFailureFlagsProvider(t *testing.T) {
	ctx := context.Background()
	store := &failingRatingStore{ProviderStore: memory.NewProviderStore()}
	store.On("UpdateRating", mock.Anything, mock.Anything).
		Return(apperrors.NewUnavailableError("database unavailable", errors.New("connection refused")))

	f := newReviewFixture(t, store)
	seedProvider(t, store, "p1", entities.ProviderStatusApproved, 0)

	res, err := f.service.RecordReview(ctx, "p1", "alice", 5, "")
	require.NoError(t, err, "the review itself is stored")
	require.NotNil(t, res.Review)
	assert.Nil(t, res.Rating)
	assert.Error(t, res.RatingWarning)

	store.AssertNumberOfCalls(t, "UpdateRating", 3)

	count, err := f.reviews.CountByProvider(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	flagged, err := f.queue.Pop(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, flagged)

	p, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.ReviewCount, "stale but consistent with an earlier review set")
}
