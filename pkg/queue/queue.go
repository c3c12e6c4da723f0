// Package queue provides the durable intent queue: at-least-once delivery
// with visibility timeouts, acknowledgement, and a dead-letter store for
// items that exhausted their retry budget.
package queue

import (
	"context"
	"time"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// Item is one leased queue entry. The receipt token identifies the lease
// for Ack and MoveToDeadLetter.
type Item struct {
	Receipt string                  `json:"receipt"`
	Intent  *intent.ValidatedIntent `json:"intent"`
}

// DeadLetter is a queue item parked for manual inspection after its retry
// budget was exhausted. It is never retried automatically.
type DeadLetter struct {
	Receipt  string                  `json:"receipt"`
	Intent   *intent.ValidatedIntent `json:"intent"`
	Reason   string                  `json:"reason"`
	MovedAt  time.Time               `json:"movedAt"`
	Attempts int                     `json:"attempts"`
}

// Queue is the durable intent queue collaborator
type Queue interface {
	// Enqueue adds an intent to the pending pool
	Enqueue(ctx context.Context, in *intent.ValidatedIntent) error

	// FetchNext leases the next pending item. A nil item with a nil error
	// means the queue is empty; that is a no-op poll, not a failure.
	FetchNext(ctx context.Context) (*Item, error)

	// Ack removes a leased item permanently
	Ack(ctx context.Context, receipt string) error

	// MoveToDeadLetter removes a leased item and records it in the
	// dead-letter store
	MoveToDeadLetter(ctx context.Context, receipt, reason string, attempts int) error

	// ListDeadLetters returns dead-lettered items, newest first
	ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error)

	// ReclaimExpired returns items whose visibility timeout lapsed to the
	// pending pool and reports how many were reclaimed
	ReclaimExpired(ctx context.Context) (int, error)

	// Depth returns the number of pending items
	Depth(ctx context.Context) (int64, error)
}
