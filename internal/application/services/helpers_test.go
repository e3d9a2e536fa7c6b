package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/pkg/config"
	"github.com/zatekoja/provider-directory/pkg/keylock"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type reviewFixture struct {
	providers  *memory.ProviderStore
	reviews    *memory.ReviewStore
	queue      *memory.ReconcileQueue
	aggregator *services.RatingAggregator
	service    *services.ReviewService
}

func newReviewFixture(t *testing.T, providerRepo repositories.ProviderRepository, opts ...services.RatingAggregatorOption) *reviewFixture {
	t.Helper()

	store := memory.NewProviderStore()
	if providerRepo == nil {
		providerRepo = store
	}
	reviews := memory.NewReviewStore()
	queue := memory.NewReconcileQueue()
	aggregator := services.NewRatingAggregator(providerRepo, reviews, keylock.New(), queue, opts...)

	service := services.NewReviewService(reviews, providerRepo, aggregator, config.DiscoveryConfig{
		DefaultPageSize:  10,
		MaxPageSize:      50,
		OperationTimeout: time.Second,
	})

	return &reviewFixture{
		providers:  store,
		reviews:    reviews,
		queue:      queue,
		aggregator: aggregator,
		service:    service,
	}
}

func seedProvider(t *testing.T, repo repositories.ProviderRepository, id string, status entities.ProviderStatus, offset time.Duration) *entities.Provider {
	t.Helper()

	p := &entities.Provider{
		ID:                 id,
		Slug:               "provider-" + id,
		DisplayName:        "Provider " + id,
		Category:           "cleaning",
		Country:            "Kenya",
		City:               "Nairobi",
		Gender:             entities.GenderFemale,
		HourlyRate:         25,
		Currency:           "KES",
		Status:             status,
		VerificationStatus: entities.VerificationUnverified,
		CreatedAt:          baseTime.Add(offset),
		UpdatedAt:          baseTime.Add(offset),
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

// failingRatingStore is a provider store whose rating writes are scripted
type failingRatingStore struct {
	*memory.ProviderStore
	mock.Mock
}

func (s *failingRatingStore) UpdateRating(ctx context.Context, summary entities.RatingSummary) error {
	args := s.Called(ctx, summary)
	return args.Error(0)
}

// blockingStore never answers until the caller gives up
type blockingStore struct {
	*memory.ProviderStore
}

func (s *blockingStore) Count(ctx context.Context, criteria repositories.Criteria) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (s *blockingStore) DistinctValues(ctx context.Context, field repositories.Field, criteria repositories.Criteria) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
