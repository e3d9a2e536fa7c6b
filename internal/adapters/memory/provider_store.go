// Package memory holds in-process implementations of the repository
// interfaces, used by tests and by single-node deployments without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/query/filters"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// ProviderStore is an in-memory ProviderRepository
type ProviderStore struct {
	mu        sync.RWMutex
	providers map[string]*entities.Provider
}

// NewProviderStore creates an empty store
func NewProviderStore() *ProviderStore {
	return &ProviderStore{providers: make(map[string]*entities.Provider)}
}

// Create inserts a provider
func (s *ProviderStore) Create(ctx context.Context, provider *entities.Provider) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("create provider", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[provider.ID]; exists {
		return apperrors.NewConflictError("provider already exists")
	}
	for _, p := range s.providers {
		if provider.Slug != "" && p.Slug == provider.Slug {
			return apperrors.NewConflictError("provider slug already taken")
		}
	}
	s.providers[provider.ID] = provider.Clone()
	return nil
}

// GetByID retrieves a provider by ID
func (s *ProviderStore) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("get provider", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("provider not found")
	}
	return p.Clone(), nil
}

// GetBySlug retrieves a provider by slug
func (s *ProviderStore) GetBySlug(ctx context.Context, slug string) (*entities.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("get provider", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.providers {
		if p.Slug == slug {
			return p.Clone(), nil
		}
	}
	return nil, apperrors.NewNotFoundError("provider not found")
}

// Update writes every field except the rating aggregate
func (s *ProviderStore) Update(ctx context.Context, provider *entities.Provider) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("update provider", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.providers[provider.ID]
	if !ok {
		return apperrors.NewNotFoundError("provider not found")
	}

	next := provider.Clone()
	next.AverageRating = current.AverageRating
	next.ReviewCount = current.ReviewCount
	next.CreatedAt = current.CreatedAt
	s.providers[provider.ID] = next
	return nil
}

// UpdateRating writes the rating aggregate
func (s *ProviderStore) UpdateRating(ctx context.Context, summary entities.RatingSummary) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("update provider rating", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[summary.ProviderID]
	if !ok {
		return apperrors.NewNotFoundError("provider not found")
	}
	p.AverageRating = summary.AverageRating
	p.ReviewCount = summary.ReviewCount
	return nil
}

// Count returns the number of providers matching criteria
func (s *ProviderStore) Count(ctx context.Context, criteria repositories.Criteria) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.FromContext("count providers", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.providers {
		if filters.Matches(criteria, p) {
			n++
		}
	}
	return n, nil
}

// Find returns the matching providers, ordered and windowed
func (s *ProviderStore) Find(ctx context.Context, query repositories.ProviderQuery) ([]*entities.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("find providers", err)
	}

	s.mu.RLock()
	matched := make([]*entities.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if filters.Matches(query.Criteria, p) {
			matched = append(matched, p.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return filters.Compare(query.Sort, matched[i], matched[j]) < 0
	})

	if query.Offset >= len(matched) {
		return []*entities.Provider{}, nil
	}
	matched = matched[query.Offset:]
	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

// Neighbors returns the approved providers on either side of id in creation order
func (s *ProviderStore) Neighbors(ctx context.Context, id string) (*entities.Provider, *entities.Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.FromContext("find adjacent providers", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.providers[id]
	if !ok || !target.IsApproved() {
		return nil, nil, nil
	}

	var prev, next *entities.Provider
	for _, p := range s.providers {
		if p.ID == id || !p.IsApproved() {
			continue
		}
		switch {
		case creationLess(p, target):
			if prev == nil || creationLess(prev, p) {
				prev = p
			}
		default:
			if next == nil || creationLess(p, next) {
				next = p
			}
		}
	}
	return prev.Clone(), next.Clone(), nil
}

// DistinctValues returns the distinct non-empty values of field
func (s *ProviderStore) DistinctValues(ctx context.Context, field repositories.Field, criteria repositories.Criteria) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("list facet values", err)
	}

	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, p := range s.providers {
		if !filters.Matches(criteria, p) {
			continue
		}
		if v, ok := filters.FieldValue(p, field).(string); ok && v != "" {
			seen[v] = struct{}{}
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func creationLess(a, b *entities.Provider) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
