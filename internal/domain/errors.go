package domain

import (
	"errors"
	"fmt"
)

// Cycle fault taxonomy. The engine classifies every internal fault as one of
// these and reduces it to an Outcome; none of them crosses the engine boundary.
var (
	// ErrPermissionDenied is fatal to the cycle and not retryable without the
	// host re-granting location access.
	ErrPermissionDenied = errors.New("trackship: location permission denied")

	// ErrCaptureTimeout means no position was obtained within the bound.
	ErrCaptureTimeout = errors.New("trackship: no position within timeout")

	// ErrStorageFault means durability cannot be assumed; the cycle aborts.
	ErrStorageFault = errors.New("trackship: storage fault")

	// ErrUploadRejected is a well-formed non-2xx answer from the collector.
	ErrUploadRejected = errors.New("trackship: upload rejected")

	// ErrUploadTransport covers timeouts, resets and malformed responses.
	ErrUploadTransport = errors.New("trackship: upload transport failure")
)

// Lifecycle and configuration errors returned by the public API.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("trackship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("trackship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("trackship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("trackship: invalid configuration")

	// ErrUnknownJob is returned when cancelling a job name that is not scheduled.
	ErrUnknownJob = errors.New("trackship: unknown job")

	// ErrUnknownOutcome is returned when decoding an outcome name fails.
	ErrUnknownOutcome = errors.New("trackship: unknown outcome")
)

// UploadError carries the collector's answer for a rejected upload.
type UploadError struct {
	SampleID   int64
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sample %d: collector returned %d", e.SampleID, e.StatusCode)
	}
	return fmt.Sprintf("sample %d: collector returned %d: %s", e.SampleID, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrUploadRejected) hold.
func (e *UploadError) Unwrap() error {
	return ErrUploadRejected
}
