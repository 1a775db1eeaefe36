// Package waiter implements the FIFO waiting queues participants sit in
// before a room is formed. Ported from original_source/src/waiter/mod.rs
// and waiter/queue.rs, expressed with the teacher's mutex-guarded-map idiom
// (the same shape internal/v1/bus.Service and internal/v1/ratelimit use for
// shared in-process state).
package waiter

import (
	"context"
	"fmt"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
)

// Waiter enqueues UTXOs per QueueKey and reports a batch ready for a room
// once a queue reaches minParticipants, draining exactly that many.
type Waiter struct {
	store          domain.QueueStore
	minParticipants int
}

// New constructs a Waiter. minParticipants must be at least 2; the spec's
// minimum shuffle set size (configurable per deployment via
// config.MinRoomSize, defaulting to 3 per original_source's service
// config).
func New(store domain.QueueStore, minParticipants int) (*Waiter, error) {
	if minParticipants < 2 {
		return nil, fmt.Errorf("waiter: minParticipants must be at least 2, got %d", minParticipants)
	}
	return &Waiter{store: store, minParticipants: minParticipants}, nil
}

// AddParticipant enqueues utxoID under key and, if the queue has now
// reached minParticipants, atomically drains and returns the batch that
// should be seated into a new room. Returns (nil, false, nil) when the
// queue is not yet full, matching waiter::Waiter::add_participant's
// Option<Vec<U256>> return.
func (w *Waiter) AddParticipant(ctx context.Context, key domain.QueueKey, utxoID domain.UTXOID) ([]domain.UTXOID, bool, error) {
	if err := w.store.PushQueue(ctx, key, utxoID); err != nil {
		return nil, false, fmt.Errorf("waiter: push queue: %w", err)
	}

	n, err := w.store.QueueLen(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("waiter: queue len: %w", err)
	}
	if n < w.minParticipants {
		return nil, false, nil
	}

	ids, ok, err := w.store.DrainQueue(ctx, key, w.minParticipants)
	if err != nil {
		return nil, false, fmt.Errorf("waiter: drain queue: %w", err)
	}
	if !ok {
		// Another caller drained the queue between our len check and our
		// drain attempt; this participant stays queued for the next
		// batch.
		return nil, false, nil
	}
	return ids, true, nil
}
