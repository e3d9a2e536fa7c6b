//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/database"
	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/provider-directory/pkg/config"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
	"github.com/zatekoja/provider-directory/pkg/keylock"
)

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	cfg := &config.DatabaseConfig{
		Host:            getEnv("TEST_DB_HOST", "localhost"),
		Port:            getEnvAsInt("TEST_DB_PORT", 5432),
		User:            getEnv("TEST_DB_USER", "postgres"),
		Password:        getEnv("TEST_DB_PASSWORD", "postgres"),
		Database:        getEnv("TEST_DB_NAME", "provider_directory_test"),
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { _ = client.Close() })

	migration, err := os.ReadFile("../../../migrations/001_providers_reviews.sql")
	require.NoError(t, err)
	_, err = client.DB().Exec(string(migration))
	require.NoError(t, err)
	_, err = client.DB().Exec(`TRUNCATE TABLE reviews, providers`)
	require.NoError(t, err)
	return client
}

func TestAtomicRatingRecomputeUnderConcurrencyIntegration(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()

	providerRepo := database.NewProviderAdapter(client)
	reviewRepo := database.NewReviewAdapter(client)
	providerService := services.NewProviderService(providerRepo, nil, config.DefaultCategories)

	p, err := providerService.Register(ctx, services.RegisterProviderInput{
		DisplayName: "Concurrent Cleaner",
		Category:    "cleaning",
		Country:     "Kenya",
		City:        "Nairobi",
		Gender:      "female",
		HourlyRate:  500,
		Currency:    "kes",
	})
	require.NoError(t, err)
	_, err = providerService.SetStatus(ctx, p.ID, entities.ProviderStatusApproved)
	require.NoError(t, err)

	aggregator := services.NewRatingAggregator(providerRepo, reviewRepo, keylock.New(), memory.NewReconcileQueue(),
		services.WithAtomicRecompute(providerRepo))
	reviewService := services.NewReviewService(reviewRepo, providerRepo, aggregator, config.Defaults().Discovery)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reviewService.RecordReview(ctx, p.ID, fmt.Sprintf("reviewer-%d", i), 1+i%5, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := providerRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ReviewCount)
	assert.Equal(t, 3.0, got.AverageRating)
}

func TestDuplicateReviewIsConflictIntegration(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()

	providerRepo := database.NewProviderAdapter(client)
	reviewRepo := database.NewReviewAdapter(client)
	providerService := services.NewProviderService(providerRepo, nil, config.DefaultCategories)

	p, err := providerService.Register(ctx, services.RegisterProviderInput{
		DisplayName: "Tutor",
		Category:    "tutoring",
		Country:     "Ghana",
		City:        "Accra",
		Gender:      "male",
	})
	require.NoError(t, err)
	_, err = providerService.SetStatus(ctx, p.ID, entities.ProviderStatusApproved)
	require.NoError(t, err)

	aggregator := services.NewRatingAggregator(providerRepo, reviewRepo, keylock.New(), memory.NewReconcileQueue())
	reviewService := services.NewReviewService(reviewRepo, providerRepo, aggregator, config.Defaults().Discovery)

	_, err = reviewService.RecordReview(ctx, p.ID, "r1", 4, "")
	require.NoError(t, err)
	_, err = reviewService.RecordReview(ctx, p.ID, "r1", 2, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	got, err := providerRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReviewCount)
	assert.Equal(t, 4.0, got.AverageRating)
}
