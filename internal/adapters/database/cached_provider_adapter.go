package database

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
)

// FacetCachePattern matches every cached facet enumeration
const FacetCachePattern = "providers:facets:*"

// CachedProviderAdapter wraps a ProviderRepository and caches facet
// enumerations. Provider rows are never cached so ratings are always read
// from the store.
type CachedProviderAdapter struct {
	repositories.ProviderRepository
	cache   providers.CacheProvider
	ttl     int
	metrics *observability.Metrics
}

// NewCachedProviderAdapter creates a new cached provider adapter
func NewCachedProviderAdapter(adapter repositories.ProviderRepository, cache providers.CacheProvider, ttl time.Duration) *CachedProviderAdapter {
	return &CachedProviderAdapter{
		ProviderRepository: adapter,
		cache:              cache,
		ttl:                int(ttl.Seconds()),
	}
}

// WithMetrics records facet cache hits and misses
func (a *CachedProviderAdapter) WithMetrics(m *observability.Metrics) *CachedProviderAdapter {
	a.metrics = m
	return a
}

func facetCacheKey(field repositories.Field, criteria repositories.Criteria) string {
	raw, _ := json.Marshal(criteria)
	sum := sha1.Sum(raw)
	return fmt.Sprintf("providers:facets:%s:%s", field, hex.EncodeToString(sum[:8]))
}

// DistinctValues returns facet values, served from cache when present
func (a *CachedProviderAdapter) DistinctValues(ctx context.Context, field repositories.Field, criteria repositories.Criteria) ([]string, error) {
	cacheKey := facetCacheKey(field, criteria)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		var values []string
		err := json.Unmarshal(cached, &values)
		if err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "facets:"+string(field))
			return values, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to unmarshal cached facet values")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "facets:"+string(field))

	values, err := a.ProviderRepository.DistinctValues(ctx, field, criteria)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(values); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache facet values")
		}
	}
	return values, nil
}

// Create creates a provider and drops cached facets
func (a *CachedProviderAdapter) Create(ctx context.Context, provider *entities.Provider) error {
	if err := a.ProviderRepository.Create(ctx, provider); err != nil {
		return err
	}
	a.InvalidateFacets(ctx)
	return nil
}

// Update updates a provider and drops cached facets
func (a *CachedProviderAdapter) Update(ctx context.Context, provider *entities.Provider) error {
	if err := a.ProviderRepository.Update(ctx, provider); err != nil {
		return err
	}
	a.InvalidateFacets(ctx)
	return nil
}

// InvalidateFacets removes every cached facet enumeration. Failures are logged;
// stale entries expire with their TTL.
func (a *CachedProviderAdapter) InvalidateFacets(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, FacetCachePattern); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate facet cache")
	}
}
