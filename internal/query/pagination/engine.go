// Package pagination windows compiled provider queries into pages and walks
// providers in creation order.
package pagination

import (
	"context"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/query/filters"
)

// Engine executes compiled queries against a provider store
type Engine struct {
	store repositories.ProviderRepository
}

// NewEngine creates a pagination engine
func NewEngine(store repositories.ProviderRepository) *Engine {
	return &Engine{store: store}
}

// List returns page `page` of the providers matching q. page and pageSize
// must already be normalised by the caller. A page past the end yields an
// empty item list with the true totals.
func (e *Engine) List(ctx context.Context, q filters.Query, page, pageSize int) (*entities.Page[*entities.Provider], error) {
	total, err := e.store.Count(ctx, q.Criteria)
	if err != nil {
		return nil, err
	}

	result := &entities.Page[*entities.Provider]{
		Items:      []*entities.Provider{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: entities.TotalPagesFor(total, pageSize),
	}

	offset, ok := entities.PageBounds(page, pageSize, total)
	if !ok {
		return result, nil
	}

	items, err := e.store.Find(ctx, repositories.ProviderQuery{
		Criteria: q.Criteria,
		Sort:     q.Sort,
		Limit:    pageSize,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

// Adjacent returns the approved providers created immediately before and
// after id. Both are nil when id is unknown or not approved.
func (e *Engine) Adjacent(ctx context.Context, id string) (*entities.AdjacentProviders, error) {
	prev, next, err := e.store.Neighbors(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entities.AdjacentProviders{Previous: prev, Next: next}, nil
}

// DistinctCountries lists the countries of approved providers
func (e *Engine) DistinctCountries(ctx context.Context) ([]string, error) {
	return e.store.DistinctValues(ctx, repositories.FieldCountry, repositories.ApprovedOnly())
}

// DistinctCities lists the cities of approved providers, optionally within a country
func (e *Engine) DistinctCities(ctx context.Context, country *string) ([]string, error) {
	criteria := repositories.ApprovedOnly()
	if country != nil {
		criteria = criteria.And(repositories.Equals(repositories.FieldCountry, *country))
	}
	return e.store.DistinctValues(ctx, repositories.FieldCity, criteria)
}
