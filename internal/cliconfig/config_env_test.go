package cliconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
)

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("TRACKSHIP_COLLECTOR_URL", "https://env.example")
	t.Setenv("TRACKSHIP_INTERVAL", "2m")
	t.Setenv("TRACKSHIP_GPS_BAUD", "38400")
	t.Setenv("TRACKSHIP_STATIC_LON", "-70.25")
	t.Setenv("TRACKSHIP_ONCE", "1")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}

	if cfg.CollectorURL != "https://env.example" {
		t.Errorf("CollectorURL = %q", cfg.CollectorURL)
	}
	if cfg.Interval != 2*time.Minute {
		t.Errorf("Interval = %v, want 2m", cfg.Interval)
	}
	if cfg.GPSBaud != 38400 {
		t.Errorf("GPSBaud = %d, want 38400", cfg.GPSBaud)
	}
	if cfg.StaticLon != -70.25 {
		t.Errorf("StaticLon = %v, want -70.25", cfg.StaticLon)
	}
	if !cfg.Once {
		t.Error("Once = false, want true")
	}
}

func TestApplyEnvConfig_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"TRACKSHIP_CYCLE_TIMEOUT": "ten minutes",
		"TRACKSHIP_GPS_BAUD":      "fast",
		"TRACKSHIP_STATIC_LAT":    "north",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			cfg := DefaultConfig()
			if err := ApplyEnvConfig(&cfg, map[string]bool{}); err == nil {
				t.Errorf("ApplyEnvConfig() with %s=%q: expected error", key, value)
			}
		})
	}
}

func TestApplyEnvConfig_NaNCoordinateFailsValidation(t *testing.T) {
	t.Setenv("TRACKSHIP_COLLECTOR_URL", "https://env.example")
	t.Setenv("TRACKSHIP_SOURCE", "static")
	t.Setenv("TRACKSHIP_STATIC_LAT", "NaN")

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	if err := ApplyEnvConfig(&cfg, map[string]bool{}); err != nil {
		t.Fatalf("ApplyEnvConfig() error = %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}

// Precedence: flag > env > file > default.
func TestConfigPrecedence(t *testing.T) {
	t.Setenv("TRACKSHIP_COLLECTOR_URL", "https://env.example")
	t.Setenv("TRACKSHIP_API_KEY", "env-key")

	fc := FileConfig{
		CollectorURL: "https://file.example",
		APIKey:       "file-key",
		Interval:     "1m",
	}
	changed := map[string]bool{"api-key": true}

	cfg := DefaultConfig()
	cfg.APIKey = "flag-key"

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatal(err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatal(err)
	}

	if cfg.APIKey != "flag-key" {
		t.Errorf("APIKey = %q, flag should win", cfg.APIKey)
	}
	if cfg.CollectorURL != "https://env.example" {
		t.Errorf("CollectorURL = %q, env should override file", cfg.CollectorURL)
	}
	if cfg.Interval != time.Minute {
		t.Errorf("Interval = %v, file should override default", cfg.Interval)
	}
	if cfg.RetryBackoff != 30*time.Second {
		t.Errorf("RetryBackoff = %v, default should remain", cfg.RetryBackoff)
	}
}
