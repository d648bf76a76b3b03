package gps

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
)

// StaticSource always reports the same position. It is meant for fixed
// installations and for exercising the pipeline without a receiver.
type StaticSource struct {
	Latitude  float64
	Longitude float64
}

// NewStatic creates a static source.
func NewStatic(lat, lon float64) *StaticSource {
	return &StaticSource{Latitude: lat, Longitude: lon}
}

// Authorized always returns true.
func (s *StaticSource) Authorized() bool { return true }

// LastKnownPosition returns the configured position. Non-finite coordinates
// are reported as an error and never produce a sample.
func (s *StaticSource) LastKnownPosition(ctx context.Context) (*domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil
	}
	if !finiteCoord(s.Latitude) || !finiteCoord(s.Longitude) {
		return nil, fmt.Errorf("gps: static position %v,%v is not finite", s.Latitude, s.Longitude)
	}
	return &domain.Position{Latitude: s.Latitude, Longitude: s.Longitude, ReadAt: time.Now()}, nil
}

func finiteCoord(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
