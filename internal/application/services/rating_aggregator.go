package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
	"github.com/zatekoja/provider-directory/pkg/retry"
)

const (
	ratingLockPrefix = "rating:"
	flagTimeout      = 2 * time.Second
)

// RatingAggregator keeps a provider's average rating and review count equal
// to the aggregate of its current reviews. Recompute and write are serialized
// per provider; different providers never wait on each other.
type RatingAggregator struct {
	providers  repositories.ProviderRepository
	reviews    repositories.ReviewRepository
	locker     providers.Locker
	queue      providers.ReconcileQueue
	recomputer repositories.RatingRecomputer
	events     providers.EventBus
	metrics    *observability.Metrics
	retry      retry.Config
	timeout    time.Duration
}

// RatingAggregatorOption configures a RatingAggregator
type RatingAggregatorOption func(*RatingAggregator)

// WithAtomicRecompute delegates read, aggregate and write to a single storage
// transaction instead of computing the aggregate in process.
func WithAtomicRecompute(r repositories.RatingRecomputer) RatingAggregatorOption {
	return func(a *RatingAggregator) {
		a.recomputer = r
	}
}

// WithWriteAttempts bounds how many times a failed recompute is retried
func WithWriteAttempts(n int) RatingAggregatorOption {
	return func(a *RatingAggregator) {
		a.retry = retry.QuickConfig(n)
		a.retry.Retryable = apperrors.IsRetryable
	}
}

// WithRecomputeTimeout bounds the work done while the provider lock is held,
// retries included. Distributed locks must outlive it.
func WithRecomputeTimeout(d time.Duration) RatingAggregatorOption {
	return func(a *RatingAggregator) {
		a.timeout = d
	}
}

// WithRatingEvents publishes a rating_updated event after each recompute
func WithRatingEvents(bus providers.EventBus) RatingAggregatorOption {
	return func(a *RatingAggregator) {
		a.events = bus
	}
}

// WithRatingMetrics records recompute outcomes
func WithRatingMetrics(m *observability.Metrics) RatingAggregatorOption {
	return func(a *RatingAggregator) {
		a.metrics = m
	}
}

// NewRatingAggregator creates a rating aggregator
func NewRatingAggregator(
	providerRepo repositories.ProviderRepository,
	reviewRepo repositories.ReviewRepository,
	locker providers.Locker,
	queue providers.ReconcileQueue,
	opts ...RatingAggregatorOption,
) *RatingAggregator {
	a := &RatingAggregator{
		providers: providerRepo,
		reviews:   reviewRepo,
		locker:    locker,
		queue:     queue,
	}
	WithWriteAttempts(3)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recompute derives the provider's rating from its full review set and writes
// it back. Calling it twice without an intervening review change yields the
// same summary.
func (a *RatingAggregator) Recompute(ctx context.Context, providerID string) (entities.RatingSummary, error) {
	ctx, span := observability.StartSpan(ctx, "RatingAggregator.Recompute")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("provider.id", providerID))

	unlock, err := a.locker.Lock(ctx, ratingLockPrefix+providerID)
	if err != nil {
		observability.RecordError(span, err)
		return entities.RatingSummary{}, err
	}
	defer unlock()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var summary entities.RatingSummary
	err = retry.DoWithLog(ctx, a.retry, "rating recompute", func() error {
		var err error
		summary, err = a.recomputeOnce(ctx, providerID)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("provider_id", providerID).
			Int("attempt", attempt).
			Dur("retry_in", nextDelay).
			Msg("Rating recompute failed, retrying")
	})
	if err != nil {
		observability.RecordError(span, err)
		return entities.RatingSummary{}, err
	}

	observability.SetSpanAttributes(span,
		attribute.Float64("rating.average", summary.AverageRating),
		attribute.Int("rating.count", summary.ReviewCount),
	)
	return summary, nil
}

func (a *RatingAggregator) recomputeOnce(ctx context.Context, providerID string) (entities.RatingSummary, error) {
	if a.recomputer != nil {
		return a.recomputer.RecomputeRating(ctx, providerID)
	}

	ratings, err := a.reviews.RatingsByProvider(ctx, providerID)
	if err != nil {
		return entities.RatingSummary{}, err
	}

	avg, count := entities.ComputeRating(ratings)
	summary := entities.RatingSummary{
		ProviderID:    providerID,
		AverageRating: avg,
		ReviewCount:   count,
	}

	if err := a.providers.UpdateRating(ctx, summary); err != nil {
		return entities.RatingSummary{}, err
	}
	return summary, nil
}

// RecomputeOrFlag runs Recompute and, when it fails, flags the provider for
// the reconciler. The returned error is a warning: the stored aggregate is
// stale but still matches an earlier review set.
func (a *RatingAggregator) RecomputeOrFlag(ctx context.Context, providerID string) (*entities.RatingSummary, error) {
	summary, err := a.Recompute(ctx, providerID)
	if err == nil {
		observability.RecordRatingRecompute(ctx, a.metrics, "mutation", false)
		a.publish(ctx, summary)
		return &summary, nil
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Error().Err(err).Str("provider_id", providerID).Msg("Rating recompute failed, flagging for reconciliation")
	observability.RecordRatingRecompute(ctx, a.metrics, "mutation", true)

	// The request context may be the reason we failed
	flagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flagTimeout)
	defer cancel()
	if qerr := a.queue.Add(flagCtx, providerID); qerr != nil {
		logger.Error().Err(qerr).Str("provider_id", providerID).Msg("Failed to flag provider for rating reconciliation")
	}

	return nil, fmt.Errorf("rating for provider %s not refreshed: %w", providerID, err)
}

func (a *RatingAggregator) publish(ctx context.Context, summary entities.RatingSummary) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(ctx, providers.EventChannelProviderUpdates, entities.NewRatingUpdatedEvent(summary)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", summary.ProviderID).Msg("Failed to publish rating event")
	}
}
