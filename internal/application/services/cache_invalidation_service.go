package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops cached facet enumerations when another
// instance publishes a provider change
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	pattern  string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service.
// pattern selects the cache keys cleared on each facet-affecting event.
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus, pattern string) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		pattern:  pattern,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelProviderUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to provider updates: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Str("pattern", s.pattern).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.ProviderEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.ProviderEvent) {
	if !event.AffectsFacets() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
	defer cancel()

	if err := s.InvalidateFacets(ctx); err != nil {
		log.Warn().Err(err).
			Str("event_id", event.ID).
			Str("provider_id", event.ProviderID).
			Msg("Failed to invalidate facet cache")
		return
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("provider_id", event.ProviderID).
		Str("event_type", string(event.EventType)).
		Msg("Invalidated facet cache")
}

// InvalidateFacets clears every cached facet enumeration
func (s *CacheInvalidationService) InvalidateFacets(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, s.pattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", s.pattern, err)
	}
	return nil
}
