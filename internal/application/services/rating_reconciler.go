package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
)

const defaultReconcileBatch = 100

// RatingReconciler periodically recomputes providers whose rating write
// failed on the request path
type RatingReconciler struct {
	cron       *cron.Cron
	aggregator *RatingAggregator
	queue      providers.ReconcileQueue
	metrics    *observability.Metrics
	schedule   string
	batch      int
	timeout    time.Duration
}

// NewRatingReconciler creates a reconciler that drains queue on schedule
func NewRatingReconciler(aggregator *RatingAggregator, queue providers.ReconcileQueue, schedule string, batch int, metrics *observability.Metrics) *RatingReconciler {
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &RatingReconciler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		aggregator: aggregator,
		queue:      queue,
		metrics:    metrics,
		schedule:   schedule,
		batch:      batch,
		timeout:    time.Minute,
	}
}

// Start registers the job and starts the scheduler
func (r *RatingReconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if _, err := r.RunOnce(runCtx); err != nil {
			log.Error().Err(err).Msg("Rating reconciliation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	log.Info().Str("schedule", r.schedule).Int("batch", r.batch).Msg("Rating reconciler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish
func (r *RatingReconciler) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("Rating reconciler stopped")
}

// RunOnce recomputes one batch of flagged providers and returns how many
// succeeded. Providers that fail again are flagged for the next run.
func (r *RatingReconciler) RunOnce(ctx context.Context) (int, error) {
	ids, err := r.queue.Pop(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to read reconcile queue: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	repaired := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			r.requeue(ctx, ids[i:])
			return repaired, ctx.Err()
		}

		summary, err := r.aggregator.Recompute(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("provider_id", id).Msg("Reconcile recompute failed, re-flagging")
			observability.RecordRatingRecompute(ctx, r.metrics, "reconciler", true)
			r.requeue(ctx, []string{id})
			continue
		}

		observability.RecordRatingRecompute(ctx, r.metrics, "reconciler", false)
		r.aggregator.publish(ctx, summary)
		repaired++
	}

	log.Info().Int("flagged", len(ids)).Int("repaired", repaired).Msg("Rating reconciliation pass complete")
	return repaired, nil
}

func (r *RatingReconciler) requeue(ctx context.Context, ids []string) {
	flagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flagTimeout)
	defer cancel()
	for _, id := range ids {
		if err := r.queue.Add(flagCtx, id); err != nil {
			log.Error().Err(err).Str("provider_id", id).Msg("Failed to re-flag provider")
		}
	}
}
