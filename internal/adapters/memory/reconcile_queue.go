package memory

import (
	"context"
	"sort"
	"sync"
)

// ReconcileQueue is an in-process set of providers awaiting rating recomputation
type ReconcileQueue struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewReconcileQueue creates an empty queue
func NewReconcileQueue() *ReconcileQueue {
	return &ReconcileQueue{ids: make(map[string]struct{})}
}

// Add flags a provider. Flagging twice is a no-op.
func (q *ReconcileQueue) Add(_ context.Context, providerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids[providerID] = struct{}{}
	return nil
}

// Pop removes and returns up to n flagged providers in ID order
func (q *ReconcileQueue) Pop(_ context.Context, n int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, len(q.ids))
	for id := range q.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	for _, id := range out {
		delete(q.ids, id)
	}
	return out, nil
}
