package entities

import (
	"time"

	"github.com/google/uuid"
)

// ProviderEventType represents the type of provider event
type ProviderEventType string

const (
	ProviderEventTypeRegistered    ProviderEventType = "registered"
	ProviderEventTypeFacetsUpdated ProviderEventType = "facets_updated"
	ProviderEventTypeStatusChanged ProviderEventType = "status_changed"
	ProviderEventTypeRatingUpdated ProviderEventType = "rating_updated"
)

// ProviderEvent is published after a provider record changes. It drives
// internal cache invalidation only.
type ProviderEvent struct {
	ID            string                 `json:"id"`
	ProviderID    string                 `json:"provider_id"`
	EventType     ProviderEventType      `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	Country       string                 `json:"country,omitempty"`
	ChangedFields map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewProviderEvent creates a new provider event
func NewProviderEvent(provider *Provider, eventType ProviderEventType, changedFields map[string]interface{}) *ProviderEvent {
	return &ProviderEvent{
		ID:            uuid.NewString(),
		ProviderID:    provider.ID,
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Country:       provider.Country,
		ChangedFields: changedFields,
	}
}

// AffectsFacets reports whether the event can change the facet enumerations
func (e *ProviderEvent) AffectsFacets() bool {
	return e.EventType != ProviderEventTypeRatingUpdated
}

// NewRatingUpdatedEvent creates the event published after a rating recompute
func NewRatingUpdatedEvent(summary RatingSummary) *ProviderEvent {
	return &ProviderEvent{
		ID:         uuid.NewString(),
		ProviderID: summary.ProviderID,
		EventType:  ProviderEventTypeRatingUpdated,
		Timestamp:  time.Now().UTC(),
		ChangedFields: map[string]interface{}{
			"average_rating": summary.AverageRating,
			"review_count":   summary.ReviewCount,
		},
	}
}
