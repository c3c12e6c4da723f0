package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// MemoryQueue is an in-process Queue used for development and tests. Same
// lease semantics as the Redis queue, none of the durability.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []string
	processing map[string]time.Time
	items      map[string]*intent.ValidatedIntent
	dead       []*DeadLetter
	visibility time.Duration
}

// NewMemoryQueue creates an empty in-process queue
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &MemoryQueue{
		processing: make(map[string]time.Time),
		items:      make(map[string]*intent.ValidatedIntent),
		visibility: visibility,
	}
}

// Enqueue adds an intent to the pending pool
func (q *MemoryQueue) Enqueue(_ context.Context, in *intent.ValidatedIntent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	receipt := uuid.NewString()
	q.items[receipt] = in
	q.pending = append(q.pending, receipt)
	return nil
}

// FetchNext leases the next pending item
func (q *MemoryQueue) FetchNext(_ context.Context) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, nil
	}
	receipt := q.pending[0]
	q.pending = q.pending[1:]
	q.processing[receipt] = time.Now().Add(q.visibility)
	return &Item{Receipt: receipt, Intent: q.items[receipt]}, nil
}

// Ack removes a leased item permanently
func (q *MemoryQueue) Ack(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, receipt)
	delete(q.items, receipt)
	return nil
}

// MoveToDeadLetter removes a leased item and records it for inspection
func (q *MemoryQueue) MoveToDeadLetter(_ context.Context, receipt, reason string, attempts int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dead = append([]*DeadLetter{{
		Receipt:  receipt,
		Intent:   q.items[receipt],
		Reason:   reason,
		MovedAt:  time.Now().UTC(),
		Attempts: attempts,
	}}, q.dead...)
	delete(q.processing, receipt)
	delete(q.items, receipt)
	return nil
}

// ListDeadLetters returns dead-lettered items, newest first
func (q *MemoryQueue) ListDeadLetters(_ context.Context, limit int) ([]*DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.dead) {
		limit = len(q.dead)
	}
	out := make([]*DeadLetter, limit)
	copy(out, q.dead[:limit])
	return out, nil
}

// ReclaimExpired returns items whose lease lapsed to the pending pool
func (q *MemoryQueue) ReclaimExpired(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	reclaimed := 0
	for receipt, deadline := range q.processing {
		if deadline.After(now) {
			continue
		}
		delete(q.processing, receipt)
		q.pending = append(q.pending, receipt)
		reclaimed++
	}
	return reclaimed, nil
}

// Depth returns the number of pending items
func (q *MemoryQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}
