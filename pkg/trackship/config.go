package trackship

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
)

// Default values applied by Config.SetDefaults.
const (
	DefaultInterval        = 15 * time.Minute
	DefaultRetryBackoff    = 30 * time.Second
	DefaultCycleTimeout    = 10 * time.Minute
	DefaultPositionTimeout = 30 * time.Second
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultProbeTimeout    = 5 * time.Second
	DefaultUploadPath      = "/location"
)

// Config configures a Tracker.
type Config struct {
	// DBPath is the SQLite database holding samples. Required.
	DBPath string

	// StatusDir holds status.json. Defaults to the directory of DBPath.
	StatusDir string

	CollectorURL string
	UploadPath   string
	APIKey       string

	// DeviceID overrides the id generated on first open of the store.
	DeviceID string

	Interval     time.Duration
	InitialDelay time.Duration

	// RetryBackoff is the first delay before re-running a cycle that ended
	// with OutcomeRetry. Zero leaves retries to the periodic cadence.
	RetryBackoff time.Duration

	CycleTimeout    time.Duration
	PositionTimeout time.Duration
	HTTPTimeout     time.Duration

	// ProbeAddr is dialled to decide whether the network is up.
	ProbeAddr    string
	ProbeTimeout time.Duration

	// ListenAddr enables the read-only display API when set.
	ListenAddr string
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.UploadPath == "" {
		c.UploadPath = DefaultUploadPath
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.CycleTimeout == 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
	if c.PositionTimeout == 0 {
		c.PositionTimeout = DefaultPositionTimeout
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	c.CollectorURL = strings.TrimRight(c.CollectorURL, "/")
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: DBPath is required", domain.ErrInvalidConfig)
	}
	if c.CollectorURL == "" {
		return fmt.Errorf("%w: CollectorURL is required", domain.ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: Interval must be positive", domain.ErrInvalidConfig)
	}
	if c.InitialDelay < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("%w: InitialDelay and RetryBackoff must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
