package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/adapters/database"
	"github.com/zatekoja/provider-directory/internal/adapters/lock"
	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/adapters/queue"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	"github.com/zatekoja/provider-directory/pkg/config"
	"github.com/zatekoja/provider-directory/pkg/keylock"
	"github.com/zatekoja/provider-directory/pkg/secrets"
)

func main() {
	var workers int
	var providerID string

	flag.IntVar(&workers, "workers", 3, "Number of concurrent workers")
	flag.StringVar(&providerID, "provider", "", "Single provider ID to recompute")
	flag.Parse()

	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv("")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("provider-directory-backfill", cfg.Env, cfg.LogLevel)

	if cfg.Database.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("Backfill requires the postgres driver")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	providerRepo := database.NewProviderAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)

	// Share the API's locks and reconcile set when Redis is reachable so a
	// backfill can run against a live deployment.
	var locker providers.Locker = keylock.New()
	var reconcileSet providers.ReconcileQueue = memory.NewReconcileQueue()
	if redisClient, err := redis.NewClient(&cfg.Redis); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; using in-process locks")
	} else {
		defer redisClient.Close()
		if cfg.Rating.LockBackend == "redis" {
			locker = lock.NewRedisLocker(redisClient, cfg.Rating.LockTTL)
		}
		reconcileSet = queue.NewRedisReconcileQueue(redisClient)
	}

	opts := []services.RatingAggregatorOption{
		services.WithWriteAttempts(cfg.Rating.WriteAttempts),
		services.WithRecomputeTimeout(cfg.Discovery.OperationTimeout),
	}
	if cfg.Rating.AtomicSQL {
		opts = append(opts, services.WithAtomicRecompute(providerRepo))
	}
	aggregator := services.NewRatingAggregator(providerRepo, reviewRepo, locker, reconcileSet, opts...)
	svc := services.NewRatingBackfillService(providerRepo, aggregator, workers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	if providerID != "" {
		log.Info().Str("provider_id", providerID).Msg("Recomputing single provider")
		if err := svc.BackfillSingle(ctx, providerID); err != nil {
			log.Fatal().Err(err).Str("provider_id", providerID).Msg("Failed to recompute provider rating")
		}
		log.Info().Str("provider_id", providerID).Msg("Provider rating recomputed")
		return
	}

	log.Info().Int("workers", workers).Msg("Starting rating backfill")
	summary, err := svc.BackfillAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Backfill stopped early")
	}
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("processed", summary.TotalProcessed).
		Int("succeeded", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Msg("Backfill complete")
}
