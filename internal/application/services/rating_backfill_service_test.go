package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

func TestRatingBackfill_RecomputesEveryProvider(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)

	// more than one page, mixed statuses
	total := services.BackfillBatchSize + 25
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("p%03d", i)
		status := entities.ProviderStatusApproved
		if i%3 == 0 {
			status = entities.ProviderStatusPending
		}
		seedProvider(t, f.providers, id, status, time.Duration(i)*time.Minute)
		addReview(t, f, "r"+id, id, "a", 1+i%5)
	}

	svc := services.NewRatingBackfillService(f.providers, f.aggregator, 4)
	summary, err := svc.BackfillAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, summary.TotalProcessed)
	assert.Equal(t, total, summary.SuccessCount)
	assert.Zero(t, summary.FailureCount)

	p, err := f.providers.GetByID(ctx, "p007")
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.AverageRating)
	assert.Equal(t, 1, p.ReviewCount)

	pending, err := f.providers.GetByID(ctx, "p000")
	require.NoError(t, err)
	assert.Equal(t, 1, pending.ReviewCount)
}

func TestRatingBackfill_CountsAndFlagsFailures(t *testing.T) {
	ctx := context.Background()
	store := &failingRatingStore{ProviderStore: memory.NewProviderStore()}
	store.On("UpdateRating", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	f := newReviewFixture(t, store, services.WithWriteAttempts(1))
	seedProvider(t, store, "p1", entities.ProviderStatusApproved, 0)
	seedProvider(t, store, "p2", entities.ProviderStatusApproved, time.Minute)

	svc := services.NewRatingBackfillService(store, f.aggregator, 2)
	summary, err := svc.BackfillAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalProcessed)
	assert.Equal(t, 2, summary.FailureCount)

	flagged, err := f.queue.Pop(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, flagged)
}

func TestRatingBackfill_Single(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)
	addReview(t, f, "r1", "p1", "a", 4)
	addReview(t, f, "r2", "p1", "b", 5)

	svc := services.NewRatingBackfillService(f.providers, f.aggregator, 0)
	require.NoError(t, svc.BackfillSingle(ctx, "p1"))

	p, err := f.providers.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, p.AverageRating)
	assert.Equal(t, 2, p.ReviewCount)
}
