// Package status persists intent lifecycle state and the original intent
// payloads. The state record is the source of truth the API serves and the
// settlement poller scans; the payload record lets a parked intent resume
// without re-submission.
package status

import (
	"context"
	"errors"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

var ErrNotFound = errors.New("intent not found")

// Store provides intent status and payload persistence
type Store interface {
	// SetStatus upserts the lifecycle record for an intent
	SetStatus(ctx context.Context, st *intent.Status) error

	// CreateStatus inserts the lifecycle record only when none exists yet
	// and reports whether this call created it. Concurrent callers racing
	// on the same intent ID see exactly one true result.
	CreateStatus(ctx context.Context, st *intent.Status) (bool, error)

	// GetStatus returns the lifecycle record, or (nil, nil) when no record
	// exists for the ID
	GetStatus(ctx context.Context, intentID string) (*intent.Status, error)

	// GetStatusesByState returns all records currently in the given state
	GetStatusesByState(ctx context.Context, state intent.State) ([]*intent.Status, error)

	// SaveIntent persists the validated intent payload
	SaveIntent(ctx context.Context, in *intent.ValidatedIntent) error

	// GetIntent returns the persisted payload, or ErrNotFound
	GetIntent(ctx context.Context, intentID string) (*intent.ValidatedIntent, error)
}
