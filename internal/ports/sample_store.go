package ports

import (
	"context"

	"github.com/bft-labs/trackship/internal/domain"
)

// SampleStore is the single source of truth for captured samples.
// Each method is individually atomic; callers never hold a lock across calls.
type SampleStore interface {
	// Insert durably commits a new unsynced sample and returns its id.
	// A returned error means the sample must be considered lost.
	Insert(ctx context.Context, latitude, longitude float64, capturedAt int64) (int64, error)

	// ListUnsynced returns every sample with synced=false, oldest first.
	ListUnsynced(ctx context.Context) ([]domain.Sample, error)

	// MarkSynced flips the synced flag. Unknown or already synced ids are a no-op.
	MarkSynced(ctx context.Context, id int64) error

	// ListRecent returns up to n samples, newest first. Read-only.
	ListRecent(ctx context.Context, n int) ([]domain.Sample, error)
}

// RecentLister is the read-only slice of SampleStore handed to display code.
type RecentLister interface {
	ListRecent(ctx context.Context, n int) ([]domain.Sample, error)
}
