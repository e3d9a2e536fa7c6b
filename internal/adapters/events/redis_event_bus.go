// Package events carries provider change notifications between instances
// over Redis Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	redisclient "github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
)

// subscriberBuffer is how many undelivered events a slow subscriber may hold
// before new events are dropped for it
const subscriberBuffer = 100

// topic is one Redis subscription fanned out to local subscribers
type topic struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.ProviderEvent]struct{}
}

// RedisEventBus implements providers.EventBus using Redis Pub/Sub. Each
// channel holds one Redis subscription no matter how many local
// subscribers it has.
type RedisEventBus struct {
	client *redisclient.Client
	mu     sync.RWMutex
	topics map[string]*topic
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		topics: make(map[string]*topic),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish sends event to every instance subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.ProviderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Str("provider_id", event.ProviderID).
		Msg("Published provider event")
	return nil
}

// Subscribe returns a channel of events that stays open until ctx is done or
// the bus is closed
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ProviderEvent, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, errors.New("event bus closed")
	}
	t, ok := b.topics[channel]
	if !ok {
		t = &topic{
			pubsub:      b.client.Client().Subscribe(b.ctx, channel),
			subscribers: make(map[chan *entities.ProviderEvent]struct{}),
		}
		b.topics[channel] = t
		go b.receive(channel, t)
	}
	eventChan := make(chan *entities.ProviderEvent, subscriberBuffer)
	t.subscribers[eventChan] = struct{}{}
	count := len(t.subscribers)
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", count).Msg("Subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.unsubscribe(channel, t, eventChan)
	}()

	return eventChan, nil
}

// receive decodes messages for t until its subscription closes
func (b *RedisEventBus) receive(channel string, t *topic) {
	defer b.drop(channel, t)

	for msg := range t.pubsub.Channel() {
		var event entities.ProviderEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("Failed to unmarshal event")
			continue
		}

		b.mu.RLock()
		for subscriber := range t.subscribers {
			// each subscriber gets its own copy
			ev := event
			select {
			case subscriber <- &ev:
			default:
				log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber channel full, skipping event")
			}
		}
		b.mu.RUnlock()
	}
}

func (b *RedisEventBus) unsubscribe(channel string, t *topic, eventChan chan *entities.ProviderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := t.subscribers[eventChan]; !ok {
		return
	}
	delete(t.subscribers, eventChan)
	close(eventChan)

	if len(t.subscribers) == 0 && b.topics[channel] == t {
		delete(b.topics, channel)
		_ = t.pubsub.Close()
		log.Info().Str("channel", channel).Msg("Closed subscription")
	}
}

// drop closes whatever subscribers t still has. A newer topic registered
// for the same channel is left alone.
func (b *RedisEventBus) drop(channel string, t *topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range t.subscribers {
		close(subscriber)
		delete(t.subscribers, subscriber)
	}
	if b.topics[channel] == t {
		delete(b.topics, channel)
	}
}

// Close ends every subscription. Subscriber channels are closed.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	b.cancel()
	topics := b.topics
	b.topics = make(map[string]*topic)
	b.mu.Unlock()

	var errs []error
	for channel, t := range topics {
		if err := t.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close subscription %s: %w", channel, err))
		}
	}

	log.Info().Msg("Event bus closed")
	return errors.Join(errs...)
}
