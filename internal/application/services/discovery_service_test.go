package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/pkg/config"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

func discoveryConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		DefaultPageSize:  2,
		MaxPageSize:      3,
		OperationTimeout: time.Second,
		Categories:       testCategories,
	}
}

func TestDiscoveryService_SearchDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		seedProvider(t, store, id, entities.ProviderStatusApproved, time.Duration(i)*time.Hour)
	}
	seedProvider(t, store, "hidden", entities.ProviderStatusPending, 10*time.Hour)

	service := services.NewDiscoveryService(store, discoveryConfig())

	page, err := service.Search(ctx, entities.NewSearchFilters(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.PageSize)
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 2)

	capped, err := service.Search(ctx, entities.NewSearchFilters(), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, capped.PageSize)
	assert.Len(t, capped.Items, 3)
}

func TestDiscoveryService_SearchFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	seedProvider(t, store, "a", entities.ProviderStatusApproved, 0)
	b := seedProvider(t, store, "b", entities.ProviderStatusApproved, time.Hour)
	b.City = "Mombasa"
	require.NoError(t, store.Update(ctx, b))

	service := services.NewDiscoveryService(store, discoveryConfig())

	page, err := service.Search(ctx, entities.NewSearchFilters(entities.WithCity("Mombasa")), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b", page.Items[0].ID)

	unknown, err := service.Search(ctx, entities.NewSearchFilters(entities.WithCategory("astrology")), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, unknown.TotalCount, "unknown categories impose no constraint")
}

func TestDiscoveryService_ListFeatured(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	seedProvider(t, store, "a", entities.ProviderStatusApproved, 0)
	b := seedProvider(t, store, "b", entities.ProviderStatusApproved, time.Hour)
	seedProvider(t, store, "c", entities.ProviderStatusApproved, 2*time.Hour)
	b.PriorityScore = 5
	require.NoError(t, store.Update(ctx, b))

	service := services.NewDiscoveryService(store, discoveryConfig())

	page, err := service.List(ctx, 1, 3)
	require.NoError(t, err)
	var ids []string
	for _, p := range page.Items {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestDiscoveryService_GetProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	seedProvider(t, store, "a", entities.ProviderStatusApproved, 0)
	seedProvider(t, store, "p", entities.ProviderStatusPending, 0)

	service := services.NewDiscoveryService(store, discoveryConfig())

	byID, err := service.GetProvider(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", byID.ID)

	bySlug, err := service.GetProvider(ctx, "provider-a")
	require.NoError(t, err)
	assert.Equal(t, "a", bySlug.ID)

	_, err = service.GetProvider(ctx, "p")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = service.GetProvider(ctx, "nobody")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestDiscoveryService_Adjacent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	seedProvider(t, store, "a", entities.ProviderStatusApproved, 0)
	seedProvider(t, store, "b", entities.ProviderStatusApproved, time.Hour)
	seedProvider(t, store, "c", entities.ProviderStatusApproved, 2*time.Hour)

	service := services.NewDiscoveryService(store, discoveryConfig())

	adj, err := service.Adjacent(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, adj.Previous)
	require.NotNil(t, adj.Next)
	assert.Equal(t, "a", adj.Previous.ID)
	assert.Equal(t, "c", adj.Next.ID)

	missing, err := service.Adjacent(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing.Previous)
	assert.Nil(t, missing.Next)
}

func TestDiscoveryService_TimeoutIsUnavailable(t *testing.T) {
	cfg := discoveryConfig()
	cfg.OperationTimeout = 20 * time.Millisecond
	service := services.NewDiscoveryService(&blockingStore{ProviderStore: memory.NewProviderStore()}, cfg)

	_, err := service.Search(context.Background(), entities.NewSearchFilters(), 1, 10)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = service.DistinctCountries(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestDiscoveryService_Facets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProviderStore()
	a := seedProvider(t, store, "a", entities.ProviderStatusApproved, 0)
	a.Country, a.City = "Uganda", "Kampala"
	require.NoError(t, store.Update(ctx, a))
	seedProvider(t, store, "b", entities.ProviderStatusApproved, time.Hour)
	hidden := seedProvider(t, store, "c", entities.ProviderStatusPending, 2*time.Hour)
	hidden.Country = "Tanzania"
	require.NoError(t, store.Update(ctx, hidden))

	service := services.NewDiscoveryService(store, discoveryConfig())

	countries, err := service.DistinctCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kenya", "Uganda"}, countries)

	kenya := "Kenya"
	cities, err := service.DistinctCities(ctx, &kenya)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nairobi"}, cities)
}
