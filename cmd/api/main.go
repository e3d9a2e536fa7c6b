package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/adapters/cache"
	"github.com/zatekoja/provider-directory/internal/adapters/database"
	"github.com/zatekoja/provider-directory/internal/adapters/events"
	"github.com/zatekoja/provider-directory/internal/adapters/lock"
	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/adapters/queue"
	"github.com/zatekoja/provider-directory/internal/api/handlers"
	"github.com/zatekoja/provider-directory/internal/api/routes"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/providers"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	"github.com/zatekoja/provider-directory/pkg/config"
	"github.com/zatekoja/provider-directory/pkg/keylock"
	"github.com/zatekoja/provider-directory/pkg/secrets"
)

func main() {
	vaultResult, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv(""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)
	if vaultResult.Enabled {
		log.Info().Str("path", vaultResult.Path).Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).Msg("Secrets loaded from Vault")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Storage
	var (
		providerRepo repositories.ProviderRepository
		reviewRepo   repositories.ReviewRepository
		recomputer   repositories.RatingRecomputer
		readiness    = map[string]func(context.Context) error{}
	)
	switch cfg.Database.Driver {
	case "memory":
		providerRepo = memory.NewProviderStore()
		reviewRepo = memory.NewReviewStore()
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
	default:
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		readiness["postgres"] = pgClient.Ping

		providerAdapter := database.NewProviderAdapter(pgClient)
		providerRepo = providerAdapter
		reviewRepo = database.NewReviewAdapter(pgClient)
		if cfg.Rating.AtomicSQL {
			recomputer = providerAdapter
		}
	}

	// Redis is optional; without it the process runs single-node
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
		redisLocker   providers.Locker
		reconcileSet  providers.ReconcileQueue
	)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; caching, events and distributed locking disabled")
	} else {
		defer redisClient.Close()
		readiness["redis"] = redisClient.Ping
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		redisLocker = lock.NewRedisLocker(redisClient, cfg.Rating.LockTTL)
		reconcileSet = queue.NewRedisReconcileQueue(redisClient)
	}

	if cacheProvider != nil {
		providerRepo = database.NewCachedProviderAdapter(providerRepo, cacheProvider, cfg.Discovery.FacetCacheTTL).WithMetrics(metrics)
		log.Info().Dur("ttl", cfg.Discovery.FacetCacheTTL).Msg("Facet lookups wrapped with caching layer")
	}

	var locker providers.Locker = keylock.New()
	if cfg.Rating.LockBackend == "redis" {
		if redisLocker != nil {
			locker = redisLocker
		} else {
			log.Warn().Msg("Redis lock backend requested but Redis is unavailable; using in-process locks")
		}
	}
	if reconcileSet == nil {
		reconcileSet = memory.NewReconcileQueue()
	}

	// Services
	aggregatorOpts := []services.RatingAggregatorOption{
		services.WithWriteAttempts(cfg.Rating.WriteAttempts),
		services.WithRecomputeTimeout(cfg.Discovery.OperationTimeout),
		services.WithRatingMetrics(metrics),
	}
	if recomputer != nil {
		aggregatorOpts = append(aggregatorOpts, services.WithAtomicRecompute(recomputer))
	}
	if eventBus != nil {
		aggregatorOpts = append(aggregatorOpts, services.WithRatingEvents(eventBus))
	}
	aggregator := services.NewRatingAggregator(providerRepo, reviewRepo, locker, reconcileSet, aggregatorOpts...)

	discoveryService := services.NewDiscoveryService(providerRepo, cfg.Discovery)
	reviewService := services.NewReviewService(reviewRepo, providerRepo, aggregator, cfg.Discovery)
	providerService := services.NewProviderService(providerRepo, eventBus, cfg.Discovery.Categories)

	reconciler := services.NewRatingReconciler(aggregator, reconcileSet, cfg.Rating.ReconcileSchedule, cfg.Rating.ReconcileBatch, metrics)
	if err := reconciler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start rating reconciler")
	}

	var invalidation *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		invalidation = services.NewCacheInvalidationService(cacheProvider, eventBus, database.FacetCachePattern)
		if err := invalidation.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start cache invalidation service")
			invalidation = nil
		}
	}

	// HTTP
	router := routes.NewRouter(
		handlers.NewProviderHandler(discoveryService),
		handlers.NewReviewHandler(reviewService),
		handlers.NewAdminHandler(providerService),
		cfg.Server.AllowedOrigins,
		metrics,
	)
	for name, check := range readiness {
		router.AddReadinessCheck(name, check)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	cancel()
	reconciler.Stop()
	if invalidation != nil {
		invalidation.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Msg("Server stopped")
}
