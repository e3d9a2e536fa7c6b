// Package queue stores providers whose rating aggregate must be recomputed.
package queue

import (
	"context"
	"fmt"

	redisclient "github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
)

// ReconcileSetKey is the Redis set holding flagged provider IDs
const ReconcileSetKey = "ratings:reconcile"

// RedisReconcileQueue is a ReconcileQueue backed by a Redis set, shared by
// every instance.
type RedisReconcileQueue struct {
	client *redisclient.Client
}

// NewRedisReconcileQueue creates a new queue
func NewRedisReconcileQueue(client *redisclient.Client) *RedisReconcileQueue {
	return &RedisReconcileQueue{client: client}
}

// Add flags a provider
func (q *RedisReconcileQueue) Add(ctx context.Context, providerID string) error {
	if err := q.client.Client().SAdd(ctx, ReconcileSetKey, providerID).Err(); err != nil {
		return fmt.Errorf("failed to flag provider %s for reconciliation: %w", providerID, err)
	}
	return nil
}

// Pop removes and returns up to n flagged providers
func (q *RedisReconcileQueue) Pop(ctx context.Context, n int) ([]string, error) {
	ids, err := q.client.Client().SPopN(ctx, ReconcileSetKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop reconciliation queue: %w", err)
	}
	return ids, nil
}
