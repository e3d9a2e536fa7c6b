package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/provider-directory/internal/domain/repositories"
)

// BackfillBatchSize is how many provider ids are read from storage per page
const BackfillBatchSize = 100

// BackfillSummary reports the outcome of a backfill run
type BackfillSummary struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
}

// RatingBackfillService recomputes the stored rating of every provider,
// regardless of status. Used after imports or manual data repair.
type RatingBackfillService struct {
	providerRepo repositories.ProviderRepository
	aggregator   *RatingAggregator
	workerCount  int
}

// NewRatingBackfillService creates a backfill service running the given
// number of concurrent workers
func NewRatingBackfillService(providerRepo repositories.ProviderRepository, aggregator *RatingAggregator, workers int) *RatingBackfillService {
	if workers <= 0 {
		workers = 1
	}
	return &RatingBackfillService{
		providerRepo: providerRepo,
		aggregator:   aggregator,
		workerCount:  workers,
	}
}

// BackfillAll walks providers in creation order and recomputes each one.
// Failed providers are flagged for the reconciler and counted, not fatal.
func (s *RatingBackfillService) BackfillAll(ctx context.Context) (*BackfillSummary, error) {
	var processed, success, failure int64

	idChan := make(chan string, BackfillBatchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				err := s.BackfillSingle(ctx, id)
				atomic.AddInt64(&processed, 1)
				if err != nil {
					atomic.AddInt64(&failure, 1)
					log.Warn().Err(err).Str("provider_id", id).Msg("Failed to backfill provider rating")
				} else {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}

	produceErr := s.produce(ctx, idChan)
	close(idChan)
	wg.Wait()

	summary := &BackfillSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(success),
		FailureCount:   int(failure),
	}
	return summary, produceErr
}

func (s *RatingBackfillService) produce(ctx context.Context, out chan<- string) error {
	offset := 0
	for {
		page, err := s.providerRepo.Find(ctx, repositories.ProviderQuery{
			Sort: []repositories.SortKey{
				{Field: repositories.FieldCreatedAt},
				{Field: repositories.FieldID},
			},
			Limit:  BackfillBatchSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("failed to list providers at offset %d: %w", offset, err)
		}

		for _, p := range page {
			select {
			case out <- p.ID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(page) < BackfillBatchSize {
			return nil
		}
		offset += len(page)
	}
}

// BackfillSingle recomputes one provider's rating, flagging it for
// reconciliation on failure
func (s *RatingBackfillService) BackfillSingle(ctx context.Context, providerID string) error {
	if _, err := s.aggregator.RecomputeOrFlag(ctx, providerID); err != nil {
		return err
	}
	return nil
}
