package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/adapters/database"
	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/provider-directory/internal/infrastructure/observability"
	"github.com/zatekoja/provider-directory/pkg/config"
	"github.com/zatekoja/provider-directory/pkg/keylock"
)

type seedProvider struct {
	input    services.RegisterProviderInput
	status   entities.ProviderStatus
	verified bool
	priority int
	ratings  []int
}

var seedProviders = []seedProvider{
	{
		input:    services.RegisterProviderInput{DisplayName: "Amina Wanjiku", Bio: "Deep cleaning for apartments and offices.", Category: "cleaning", Country: "Kenya", City: "Nairobi", Gender: "female", HourlyRate: 800, Currency: "KES"},
		status:   entities.ProviderStatusApproved,
		verified: true,
		priority: 10,
		ratings:  []int{5, 5, 4},
	},
	{
		input:   services.RegisterProviderInput{DisplayName: "Kwame Mensah", Bio: "Maths and physics tutor, secondary level.", Category: "tutoring", Country: "Ghana", City: "Accra", Gender: "male", HourlyRate: 120, Currency: "GHS"},
		status:  entities.ProviderStatusApproved,
		ratings: []int{4, 4, 4, 5},
	},
	{
		input:    services.RegisterProviderInput{DisplayName: "Chiamaka Obi", Bio: "Dog walking and pet sitting.", Category: "pet_care", Country: "Nigeria", City: "Lagos", Gender: "female", HourlyRate: 5000, Currency: "NGN"},
		status:   entities.ProviderStatusApproved,
		verified: true,
		ratings:  []int{3, 5, 5},
	},
	{
		input:  services.RegisterProviderInput{DisplayName: "Juma Otieno", Bio: "Plumbing, carpentry, small electrical repairs.", Category: "handyman", Country: "Kenya", City: "Mombasa", Gender: "male", HourlyRate: 1200, Currency: "KES"},
		status: entities.ProviderStatusApproved,
	},
	{
		input:  services.RegisterProviderInput{DisplayName: "Thandi Nkosi", Bio: "Personal training and nutrition coaching.", Category: "fitness", Country: "South Africa", City: "Cape Town", Gender: "female", HourlyRate: 350, Currency: "ZAR"},
		status: entities.ProviderStatusPending,
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("provider-directory-seed", cfg.Env, cfg.LogLevel)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE reviews, providers`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	providerRepo := database.NewProviderAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)
	aggregator := services.NewRatingAggregator(providerRepo, reviewRepo, keylock.New(), memory.NewReconcileQueue(),
		services.WithAtomicRecompute(providerRepo))

	providerService := services.NewProviderService(providerRepo, nil, cfg.Discovery.Categories)
	reviewService := services.NewReviewService(reviewRepo, providerRepo, aggregator, cfg.Discovery)

	for _, sp := range seedProviders {
		provider, err := providerService.Register(ctx, sp.input)
		if err != nil {
			log.Error().Err(err).Str("name", sp.input.DisplayName).Msg("Failed to register provider")
			continue
		}

		if _, err := providerService.SetStatus(ctx, provider.ID, sp.status); err != nil {
			log.Error().Err(err).Str("provider_id", provider.ID).Msg("Failed to set status")
			continue
		}
		if sp.verified {
			if _, err := providerService.SetVerification(ctx, provider.ID, entities.VerificationVerified); err != nil {
				log.Error().Err(err).Str("provider_id", provider.ID).Msg("Failed to verify provider")
			}
		}
		if sp.priority != 0 {
			if _, err := providerService.SetPriority(ctx, provider.ID, sp.priority); err != nil {
				log.Error().Err(err).Str("provider_id", provider.ID).Msg("Failed to set priority")
			}
		}

		for i, rating := range sp.ratings {
			reviewer := fmt.Sprintf("seed-reviewer-%d", i+1)
			if _, err := reviewService.RecordReview(ctx, provider.ID, reviewer, rating, ""); err != nil {
				log.Error().Err(err).Str("provider_id", provider.ID).Msg("Failed to record review")
			}
		}

		log.Info().Str("slug", provider.Slug).Str("status", string(sp.status)).Int("reviews", len(sp.ratings)).Msg("Seeded provider")
	}

	log.Info().Int("providers", len(seedProviders)).Msg("Seeding complete")
}
