package cliconfig

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/trackship/internal/adapters/netcheck"
	"github.com/bft-labs/trackship/internal/domain"
)

const (
	SourceNMEA   = "nmea"
	SourceStatic = "static"

	defaultDBName = "trackship.db"
)

// Config holds CLI configuration for trackship.
type Config struct {
	DataDir string
	DBPath  string

	CollectorURL string
	UploadPath   string
	APIKey       string
	DeviceID     string

	Interval        time.Duration
	InitialDelay    time.Duration
	RetryBackoff    time.Duration
	CycleTimeout    time.Duration
	PositionTimeout time.Duration
	HTTPTimeout     time.Duration

	ProbeAddr    string
	ProbeTimeout time.Duration

	Source    string
	GPSPort   string
	GPSBaud   int
	StaticLat float64
	StaticLon float64

	ListenAddr string
	LogFile    string
	LogLevel   string

	Once        bool
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:         defaultDataDir(),
		UploadPath:      "/location",
		Interval:        15 * time.Minute,
		RetryBackoff:    30 * time.Second,
		CycleTimeout:    10 * time.Minute,
		PositionTimeout: 30 * time.Second,
		HTTPTimeout:     30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		Source:          SourceNMEA,
		GPSBaud:         9600,
		LogLevel:        "info",
		WatchConfig:     true,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.CollectorURL == "" {
		return invalid("collector-url is required")
	}
	c.CollectorURL = strings.TrimRight(c.CollectorURL, "/")
	if u, err := url.Parse(c.CollectorURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("collector-url %q must be an absolute http(s) URL", c.CollectorURL)
	}
	if c.UploadPath == "" {
		c.UploadPath = "/location"
	}
	if !strings.HasPrefix(c.UploadPath, "/") {
		c.UploadPath = "/" + c.UploadPath
	}

	if c.ProbeAddr == "" {
		addr, err := netcheck.ProbeAddr(c.CollectorURL)
		if err != nil {
			return invalid("collector-url: %v", err)
		}
		c.ProbeAddr = addr
	}

	if err := c.ResolvePaths(); err != nil {
		return err
	}

	if c.Interval <= 0 {
		return invalid("interval must be positive")
	}
	if c.InitialDelay < 0 || c.RetryBackoff < 0 {
		return invalid("initial-delay and retry-backoff must not be negative")
	}

	switch c.Source {
	case SourceNMEA:
		if c.GPSPort == "" {
			return invalid("gps-port is required for the nmea source")
		}
		if c.GPSBaud <= 0 {
			return invalid("gps-baud must be positive")
		}
	case SourceStatic:
		if !finite(c.StaticLat) || !finite(c.StaticLon) ||
			math.Abs(c.StaticLat) > 90 || math.Abs(c.StaticLon) > 180 {
			return invalid("static position %v,%v out of range", c.StaticLat, c.StaticLon)
		}
	default:
		return invalid("unknown source %q (want %s or %s)", c.Source, SourceNMEA, SourceStatic)
	}

	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ResolvePaths derives DBPath from DataDir or the reverse. Commands that only
// read local state call it instead of Validate.
func (c *Config) ResolvePaths() error {
	if c.DBPath == "" {
		if c.DataDir == "" {
			return invalid("data-dir or db-path is required")
		}
		c.DBPath = filepath.Join(c.DataDir, defaultDBName)
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Dir(c.DBPath)
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.APIKey != "" {
		c.APIKey = "*****"
	}
	return c
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func defaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".trackship")
	}
	return ""
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setCoord sets a coordinate from a pointer. Negative values are valid
// coordinates, so presence is signalled by a non-nil pointer.
func (s *configSetter) setCoord(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setCoordFromString parses a signed coordinate from an environment string.
func (s *configSetter) setCoordFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
