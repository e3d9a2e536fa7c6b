package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	"github.com/zatekoja/provider-directory/internal/query/filters"
	"github.com/zatekoja/provider-directory/internal/query/pagination"
	"github.com/zatekoja/provider-directory/pkg/config"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
	"github.com/zatekoja/provider-directory/pkg/utils"
)

// DiscoveryService is the entry point for listing, searching and browsing
// providers. It composes the filter compiler and pagination engine and fills
// request defaults; it holds no other logic.
type DiscoveryService struct {
	store    repositories.ProviderRepository
	compiler *filters.Compiler
	engine   *pagination.Engine
	limits   pageLimits
	timeout  time.Duration
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(store repositories.ProviderRepository, cfg config.DiscoveryConfig) *DiscoveryService {
	return &DiscoveryService{
		store:    store,
		compiler: filters.NewCompiler(cfg.Categories),
		engine:   pagination.NewEngine(store),
		limits:   pageLimits{defaultSize: cfg.DefaultPageSize, maxSize: cfg.MaxPageSize},
		timeout:  cfg.OperationTimeout,
	}
}

// Search returns one page of approved providers matching f
func (s *DiscoveryService) Search(ctx context.Context, f entities.SearchFilters, page, pageSize int) (*entities.Page[*entities.Provider], error) {
	ctx, span := observability.StartSpan(ctx, "DiscoveryService.Search")
	defer span.End()

	page, pageSize = s.limits.normalize(page, pageSize)
	observability.SetSpanAttributes(span,
		attribute.String("search.sort", string(f.SortBy)),
		attribute.Int("search.page", page),
		attribute.Int("search.page_size", pageSize),
	)

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	result, err := s.engine.List(opCtx, s.compiler.Compile(f), page, pageSize)
	if err != nil {
		observability.RecordError(span, err)
		return nil, unavailable("search failed", err)
	}
	return result, nil
}

// List returns one page of the default featured listing
func (s *DiscoveryService) List(ctx context.Context, page, pageSize int) (*entities.Page[*entities.Provider], error) {
	ctx, span := observability.StartSpan(ctx, "DiscoveryService.List")
	defer span.End()

	page, pageSize = s.limits.normalize(page, pageSize)

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	result, err := s.engine.List(opCtx, filters.Featured(), page, pageSize)
	if err != nil {
		observability.RecordError(span, err)
		return nil, unavailable("listing failed", err)
	}
	return result, nil
}

// Adjacent returns the approved providers created just before and after id
func (s *DiscoveryService) Adjacent(ctx context.Context, id string) (*entities.AdjacentProviders, error) {
	ctx, span := observability.StartSpan(ctx, "DiscoveryService.Adjacent")
	defer span.End()

	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	adj, err := s.engine.Adjacent(opCtx, id)
	if err != nil {
		observability.RecordError(span, err)
		return nil, unavailable("adjacent lookup failed", err)
	}
	return adj, nil
}

// DistinctCountries lists the countries of approved providers
func (s *DiscoveryService) DistinctCountries(ctx context.Context) ([]string, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	values, err := s.engine.DistinctCountries(opCtx)
	if err != nil {
		return nil, unavailable("country lookup failed", err)
	}
	return values, nil
}

// DistinctCities lists the cities of approved providers, optionally in one country
func (s *DiscoveryService) DistinctCities(ctx context.Context, country *string) ([]string, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	values, err := s.engine.DistinctCities(opCtx, country)
	if err != nil {
		return nil, unavailable("city lookup failed", err)
	}
	return values, nil
}

// GetProvider returns an approved provider by id or slug
func (s *DiscoveryService) GetProvider(ctx context.Context, idOrSlug string) (*entities.Provider, error) {
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()

	provider, err := s.store.GetByID(opCtx, idOrSlug)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) && utils.IsSlug(idOrSlug) {
		provider, err = s.store.GetBySlug(opCtx, idOrSlug)
	}
	if err != nil {
		return nil, unavailable("provider lookup failed", err)
	}
	if !provider.IsApproved() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider %s not found", idOrSlug))
	}
	return provider, nil
}

func (s *DiscoveryService) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.timeout)
}

// pageLimits fills in an omitted page (0) and page size and caps the size.
// Negative pages pass through and produce an empty page.
type pageLimits struct {
	defaultSize int
	maxSize     int
}

func (l pageLimits) normalize(page, pageSize int) (int, int) {
	if page == 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = l.defaultSize
	}
	if l.maxSize > 0 && pageSize > l.maxSize {
		pageSize = l.maxSize
	}
	return page, pageSize
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// unavailable maps context expiry to a retryable error and passes typed
// application errors through.
func unavailable(message string, err error) error {
	err = apperrors.FromContext(message, err)
	if apperrors.TypeOf(err) == "" {
		return apperrors.NewUnavailableError(message, err)
	}
	return err
}
