package ports

import (
	"context"

	"github.com/bft-labs/trackship/internal/domain"
)

// StatusRepository persists the report of the most recent cycle so that
// other processes (the status command, display collaborators) can read it.
type StatusRepository interface {
	// Load returns the last saved report, or nil and no error if none exists.
	Load(ctx context.Context) (*domain.CycleReport, error)

	// Save persists the report atomically.
	Save(ctx context.Context, report domain.CycleReport) error
}
