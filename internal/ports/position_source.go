package ports

import (
	"context"

	"github.com/bft-labs/trackship/internal/domain"
)

// PositionSource produces best-effort position readings.
type PositionSource interface {
	// Authorized reports whether the process may read positions at all.
	Authorized() bool

	// LastKnownPosition blocks until a reading is available or ctx is done.
	// It returns (nil, nil) when the source has nothing to offer.
	LastKnownPosition(ctx context.Context) (*domain.Position, error)
}
