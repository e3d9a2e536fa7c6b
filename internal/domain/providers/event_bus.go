package providers

import (
	"context"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to provider events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ProviderEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ProviderEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelProviderUpdates is the channel for all provider changes
	EventChannelProviderUpdates = "provider:updates"
)
