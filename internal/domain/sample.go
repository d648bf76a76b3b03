package domain

import (
	"strconv"
	"time"
)

// Sample is one persisted position reading.
type Sample struct {
	// ID is assigned by the store on insert and never reused.
	ID int64 `json:"id"`

	// Latitude and Longitude are degrees, stored exactly as captured.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// CapturedAt is epoch milliseconds, set by the engine when it recorded the sample.
	CapturedAt int64 `json:"captured_at"`

	// Synced flips to true once the collector accepted the sample.
	Synced bool `json:"synced"`
}

// CapturedTime returns CapturedAt as a time.Time.
func (s Sample) CapturedTime() time.Time {
	return time.UnixMilli(s.CapturedAt)
}

// Timestamp returns CapturedAt as a decimal string, the collector's wire form.
func (s Sample) Timestamp() string {
	return strconv.FormatInt(s.CapturedAt, 10)
}

// Position is a single best-effort reading from a position source.
type Position struct {
	Latitude  float64
	Longitude float64

	// ReadAt is when the source obtained the fix. It may be stale; the engine
	// does not use it for CapturedAt.
	ReadAt time.Time
}

// DefaultRecentLimit is the number of samples returned by ListRecent when
// the caller does not ask for a specific count.
const DefaultRecentLimit = 50
