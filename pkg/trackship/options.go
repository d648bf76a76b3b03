package trackship

import (
	"time"

	"github.com/bft-labs/trackship/internal/app"
	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// Re-exported types so embedders need not import internal packages.
type (
	Sample        = domain.Sample
	Position      = domain.Position
	Outcome       = domain.Outcome
	CycleReport   = domain.CycleReport
	State         = app.State
	StateListener = app.StateListener
	CycleObserver = app.CycleObserver

	// PositionSource provides location fixes. Required.
	PositionSource = ports.PositionSource

	// ConnectivityGate decides whether an upload should be attempted.
	ConnectivityGate = ports.ConnectivityGate

	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient

	Logger   = ports.Logger
	LogField = ports.Field
)

const (
	OutcomeSuccess = domain.OutcomeSuccess
	OutcomeRetry   = domain.OutcomeRetry
	OutcomeFailure = domain.OutcomeFailure

	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Option configures optional behavior of a Tracker.
type Option func(*options)

type options struct {
	source        ports.PositionSource
	gate          ports.ConnectivityGate
	httpClient    ports.HTTPClient
	logger        ports.Logger
	observers     []app.CycleObserver
	stateListener app.StateListener
	clock         func() time.Time
	version       string
}

// WithPositionSource sets where fixes come from.
func WithPositionSource(source PositionSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithConnectivityGate replaces the default TCP probe of ProbeAddr.
func WithConnectivityGate(gate ConnectivityGate) Option {
	return func(o *options) {
		o.gate = gate
	}
}

// WithHTTPClient sets a custom HTTP client for uploads.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCycleObserver registers an observer notified after every cycle.
// Observers are called synchronously from the cycle goroutine.
func WithCycleObserver(observer CycleObserver) Option {
	return func(o *options) {
		o.observers = append(o.observers, observer)
	}
}

// WithStateListener sets a listener for lifecycle transitions.
func WithStateListener(listener StateListener) Option {
	return func(o *options) {
		o.stateListener = listener
	}
}

// WithClock replaces the clock that stamps captured samples.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithVersion sets the version reported in the User-Agent header.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}
