package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

func TestRatingReconciler_RepairsFlaggedProviders(t *testing.T) {
	ctx := context.Background()
	f := newReviewFixture(t, nil)
	seedProvider(t, f.providers, "p1", entities.ProviderStatusApproved, 0)
	seedProvider(t, f.providers, "p2", entities.ProviderStatusApproved, 0)
	addReview(t, f, "r1", "p1", "a", 5)
	addReview(t, f, "r2", "p2", "a", 2)
	addReview(t, f, "r3", "p2", "b", 3)

	require.NoError(t, f.queue.Add(ctx, "p1"))
	require.NoError(t, f.queue.Add(ctx, "p2"))

	reconciler := services.NewRatingReconciler(f.aggregator, f.queue, "@every 1h", 10, nil)
	repaired, err := reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repaired)

	p2, err := f.providers.GetByID(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 2.5, p2.AverageRating)
	assert.Equal(t, 2, p2.ReviewCount)

	left, err := f.queue.Pop(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRatingReconciler_ReflagsOnFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingRatingStore{ProviderStore: memory.NewProviderStore()}
	store.On("UpdateRating", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	f := newReviewFixture(t, store, services.WithWriteAttempts(1))
	require.NoError(t, f.queue.Add(ctx, "p1"))

	reconciler := services.NewRatingReconciler(f.aggregator, f.queue, "@every 1h", 10, nil)
	repaired, err := reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)

	left, err := f.queue.Pop(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, left)
}

func TestRatingReconciler_EmptyQueue(t *testing.T) {
	f := newReviewFixture(t, nil)
	reconciler := services.NewRatingReconciler(f.aggregator, f.queue, "@every 1h", 0, nil)

	repaired, err := reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestRatingReconciler_InvalidSchedule(t *testing.T) {
	f := newReviewFixture(t, nil)
	reconciler := services.NewRatingReconciler(f.aggregator, f.queue, "whenever", 10, nil)

	assert.Error(t, reconciler.Start(context.Background()))
}

func TestRatingReconciler_StartStop(t *testing.T) {
	f := newReviewFixture(t, nil)
	reconciler := services.NewRatingReconciler(f.aggregator, f.queue, "@every 1h", 10, nil)

	require.NoError(t, reconciler.Start(context.Background()))
	reconciler.Stop()
}
