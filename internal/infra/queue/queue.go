// Package queue buffers failed mutations in durable FIFO order and
// replays them once connectivity returns.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
	"github.com/zerodaysoftware/storekit/internal/metrics"
)

// ReplayFunc re-attempts one buffered mutation. Implementations must be
// idempotent where the endpoint allows it; the mutation's OperationID is
// available for server-side deduplication.
type ReplayFunc func(ctx context.Context, m *domain.Mutation) error

// Queue is the durable mutation buffer. Drain is single-flight: the
// underlying store is not safe under concurrent drain passes.
type Queue struct {
	store    storage.QueueStore
	log      *slog.Logger
	draining atomic.Bool
}

// NewQueue creates a queue over a durable store.
func NewQueue(store storage.QueueStore, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{store: store, log: log}
}

// Enqueue buffers a mutation with a fresh operation id and persists it
// immediately. It never touches the network.
func (q *Queue) Enqueue(ctx context.Context, endpoint, method string, body json.RawMessage) (*domain.Mutation, error) {
	m := &domain.Mutation{
		OperationID: uuid.New().String(),
		Endpoint:    endpoint,
		Method:      method,
		Body:        body,
		EnqueuedAt:  time.Now(),
	}

	if err := q.store.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("enqueue mutation: %w", err)
	}

	q.updateDepth(ctx)
	q.log.Info("mutation queued", "id", m.ID, "method", method, "endpoint", endpoint)
	return m, nil
}

// Drain replays buffered mutations in FIFO order. An item is removed
// only after its replay succeeds; a failing item is left in place and
// the pass continues, so one poisoned mutation never blocks the rest.
// Overlapping invocations are rejected.
func (q *Queue) Drain(ctx context.Context, replay ReplayFunc) error {
	if !q.draining.CompareAndSwap(false, true) {
		q.log.Debug("drain already in flight, skipping")
		return nil
	}
	defer q.draining.Store(false)

	items, err := q.store.List(ctx)
	if err != nil {
		return fmt.Errorf("drain list: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	q.log.Info("draining offline queue", "pending", len(items))

	var replayed, failed int
	for _, m := range items {
		if ctx.Err() != nil {
			break
		}

		if err := replay(ctx, m); err != nil {
			failed++
			metrics.ReplaysTotal.WithLabelValues("failed").Inc()
			m.Attempts++
			m.LastError = err.Error()
			if uerr := q.store.Update(ctx, m); uerr != nil {
				q.log.Warn("failed to record replay attempt", "id", m.ID, "error", uerr)
			}
			q.log.Warn("replay failed, keeping mutation",
				"id", m.ID, "method", m.Method, "endpoint", m.Endpoint, "error", err)
			continue
		}

		if err := q.store.Remove(ctx, m.ID); err != nil && err != storage.ErrNotFound {
			q.log.Warn("failed to remove replayed mutation", "id", m.ID, "error", err)
			continue
		}
		replayed++
		metrics.ReplaysTotal.WithLabelValues("success").Inc()
	}

	q.updateDepth(ctx)
	q.log.Info("drain pass finished", "replayed", replayed, "failed", failed)
	return nil
}

// Peek returns the buffered mutations in FIFO order without mutating.
func (q *Queue) Peek(ctx context.Context) ([]*domain.Mutation, error) {
	return q.store.List(ctx)
}

// Len returns the number of buffered mutations.
func (q *Queue) Len(ctx context.Context) int {
	n, err := q.store.Len(ctx)
	if err != nil {
		q.log.Warn("queue length unavailable", "error", err)
		return 0
	}
	return n
}

func (q *Queue) updateDepth(ctx context.Context) {
	if n, err := q.store.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
