package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
	"github.com/zatekoja/provider-directory/pkg/utils"
)

const maxSlugAttempts = 50

// RegisterProviderInput holds the fields supplied when a provider signs up
type RegisterProviderInput struct {
	DisplayName string
	Bio         string
	Category    string
	Country     string
	City        string
	Gender      string
	HourlyRate  float64
	Currency    string
}

// ProviderService handles provider lifecycle and owner edits. Rating fields
// are never accepted from callers.
type ProviderService struct {
	repo       repositories.ProviderRepository
	eventBus   providers.EventBus
	categories map[string]string
}

// NewProviderService creates a new provider service. eventBus may be nil.
func NewProviderService(repo repositories.ProviderRepository, eventBus providers.EventBus, categories []string) *ProviderService {
	catalog := make(map[string]string, len(categories))
	for _, c := range categories {
		catalog[strings.ToLower(c)] = c
	}
	return &ProviderService{
		repo:       repo,
		eventBus:   eventBus,
		categories: catalog,
	}
}

// Register creates a pending provider with a unique slug
func (s *ProviderService) Register(ctx context.Context, in RegisterProviderInput) (*entities.Provider, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, apperrors.NewValidationError("display name is required")
	}

	provider := &entities.Provider{
		ID:                 uuid.NewString(),
		DisplayName:        name,
		Bio:                strings.TrimSpace(in.Bio),
		HourlyRate:         in.HourlyRate,
		Status:             entities.ProviderStatusPending,
		VerificationStatus: entities.VerificationUnverified,
	}

	// location and currency are optional at sign-up
	facets := entities.ProviderFacets{
		Category: &in.Category,
		Gender:   (*entities.Gender)(&in.Gender),
		Country:  optionalFacet(in.Country),
		City:     optionalFacet(in.City),
		Currency: optionalFacet(in.Currency),
	}
	if err := s.validateFacets(&facets); err != nil {
		return nil, err
	}
	facets.Apply(provider)
	if provider.HourlyRate < 0 {
		return nil, apperrors.NewValidationError("hourly rate must not be negative")
	}

	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}
	provider.Slug = slug

	now := time.Now().UTC()
	provider.CreatedAt = now
	provider.UpdatedAt = now

	if err := s.repo.Create(ctx, provider); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewProviderEvent(provider, entities.ProviderEventTypeRegistered, nil))
	return provider, nil
}

// UpdateFacets applies owner edits to facet fields
func (s *ProviderService) UpdateFacets(ctx context.Context, id string, facets entities.ProviderFacets) (*entities.Provider, error) {
	if err := s.validateFacets(&facets); err != nil {
		return nil, err
	}
	if facets.HourlyRate != nil && *facets.HourlyRate < 0 {
		return nil, apperrors.NewValidationError("hourly rate must not be negative")
	}

	provider, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	facets.Apply(provider)
	if err := s.repo.Update(ctx, provider); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewProviderEvent(provider, entities.ProviderEventTypeFacetsUpdated, changedFacets(facets)))
	return provider, nil
}

// SetStatus moves a provider through its lifecycle
func (s *ProviderService) SetStatus(ctx context.Context, id string, status entities.ProviderStatus) (*entities.Provider, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown provider status %q", status))
	}
	return s.mutate(ctx, id, entities.ProviderEventTypeStatusChanged, map[string]interface{}{"status": status}, func(p *entities.Provider) {
		p.Status = status
	})
}

// SetPriority sets the manual ranking score used by the featured listing
func (s *ProviderService) SetPriority(ctx context.Context, id string, score int) (*entities.Provider, error) {
	return s.mutate(ctx, id, entities.ProviderEventTypeFacetsUpdated, map[string]interface{}{"priority_score": score}, func(p *entities.Provider) {
		p.PriorityScore = score
	})
}

// SetVerification records the outcome of identity verification
func (s *ProviderService) SetVerification(ctx context.Context, id string, v entities.VerificationStatus) (*entities.Provider, error) {
	if !v.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown verification status %q", v))
	}
	return s.mutate(ctx, id, entities.ProviderEventTypeFacetsUpdated, map[string]interface{}{"verification_status": v}, func(p *entities.Provider) {
		p.VerificationStatus = v
	})
}

func (s *ProviderService) mutate(ctx context.Context, id string, eventType entities.ProviderEventType, changed map[string]interface{}, apply func(*entities.Provider)) (*entities.Provider, error) {
	provider, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	apply(provider)
	if err := s.repo.Update(ctx, provider); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewProviderEvent(provider, eventType, changed))
	return provider, nil
}

// validateFacets canonicalises facet values in place. Stored values must be
// exactly what a search for them compares against, so text facets are
// trimmed and a set facet may not be blank.
func (s *ProviderService) validateFacets(f *entities.ProviderFacets) error {
	var err error
	if f.DisplayName, err = trimRequired(f.DisplayName, "display name"); err != nil {
		return err
	}
	if f.Country, err = trimRequired(f.Country, "country"); err != nil {
		return err
	}
	if f.City, err = trimRequired(f.City, "city"); err != nil {
		return err
	}
	if f.Currency, err = trimRequired(f.Currency, "currency"); err != nil {
		return err
	}
	if f.Currency != nil {
		upper := strings.ToUpper(*f.Currency)
		f.Currency = &upper
	}
	if f.Bio != nil {
		bio := strings.TrimSpace(*f.Bio)
		f.Bio = &bio
	}
	if f.Category != nil {
		canonical, ok := s.categories[strings.ToLower(strings.TrimSpace(*f.Category))]
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown category %q", *f.Category))
		}
		f.Category = &canonical
	}
	if f.Gender != nil {
		g, ok := entities.ParseGender(string(*f.Gender))
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown gender %q", *f.Gender))
		}
		f.Gender = &g
	}
	return nil
}

func trimRequired(v *string, name string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil, apperrors.NewValidationError(name + " must not be blank")
	}
	return &trimmed, nil
}

func optionalFacet(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func (s *ProviderService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = "provider"
	}

	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}

		_, err := s.repo.GetBySlug(ctx, candidate)
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

func (s *ProviderService) publish(ctx context.Context, event *entities.ProviderEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelProviderUpdates, event); err != nil {
		log.Warn().Err(err).Str("provider_id", event.ProviderID).Str("event_type", string(event.EventType)).Msg("Failed to publish provider event")
	}
}

func changedFacets(f entities.ProviderFacets) map[string]interface{} {
	changed := make(map[string]interface{})
	if f.DisplayName != nil {
		changed["display_name"] = *f.DisplayName
	}
	if f.Bio != nil {
		changed["bio"] = *f.Bio
	}
	if f.Category != nil {
		changed["category"] = *f.Category
	}
	if f.Country != nil {
		changed["country"] = *f.Country
	}
	if f.City != nil {
		changed["city"] = *f.City
	}
	if f.Gender != nil {
		changed["gender"] = *f.Gender
	}
	if f.HourlyRate != nil {
		changed["hourly_rate"] = *f.HourlyRate
	}
	if f.Currency != nil {
		changed["currency"] = *f.Currency
	}
	return changed
}
