package ports

import (
	"context"

	"github.com/bft-labs/trackship/internal/domain"
)

// Uploader sends exactly one request per call and never retries internally.
//
// It returns nil when the collector accepted the sample, an error wrapping
// domain.ErrUploadRejected for a well-formed error response, and an error
// wrapping domain.ErrUploadTransport for anything else.
type Uploader interface {
	Upload(ctx context.Context, sample domain.Sample) error
}
