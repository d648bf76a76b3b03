package cliconfig

import (
	"os"
	"time"
)

// EnvPrefix prefixes every environment variable trackship reads.
const EnvPrefix = "TRACKSHIP_"

// ApplyEnvConfig applies configuration from environment variables (TRACKSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("data-dir", env("DATA_DIR"), &cfg.DataDir)
	s.setString("db-path", env("DB_PATH"), &cfg.DBPath)
	s.setString("collector-url", env("COLLECTOR_URL"), &cfg.CollectorURL)
	s.setString("upload-path", env("UPLOAD_PATH"), &cfg.UploadPath)
	s.setString("api-key", env("API_KEY"), &cfg.APIKey)
	s.setString("device-id", env("DEVICE_ID"), &cfg.DeviceID)
	s.setString("probe-addr", env("PROBE_ADDR"), &cfg.ProbeAddr)
	s.setString("source", env("SOURCE"), &cfg.Source)
	s.setString("gps-port", env("GPS_PORT"), &cfg.GPSPort)
	s.setString("listen-addr", env("LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("log-file", env("LOG_FILE"), &cfg.LogFile)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	durations := []struct {
		flag string
		key  string
		dst  *time.Duration
	}{
		{"interval", "INTERVAL", &cfg.Interval},
		{"initial-delay", "INITIAL_DELAY", &cfg.InitialDelay},
		{"retry-backoff", "RETRY_BACKOFF", &cfg.RetryBackoff},
		{"cycle-timeout", "CYCLE_TIMEOUT", &cfg.CycleTimeout},
		{"position-timeout", "POSITION_TIMEOUT", &cfg.PositionTimeout},
		{"http-timeout", "HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"probe-timeout", "PROBE_TIMEOUT", &cfg.ProbeTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, env(d.key), d.dst); err != nil {
			return err
		}
	}

	if err := s.setIntFromString("gps-baud", env("GPS_BAUD"), &cfg.GPSBaud); err != nil {
		return err
	}
	if err := s.setCoordFromString("static-lat", env("STATIC_LAT"), &cfg.StaticLat); err != nil {
		return err
	}
	if err := s.setCoordFromString("static-lon", env("STATIC_LON"), &cfg.StaticLon); err != nil {
		return err
	}

	s.setBoolFromString("once", env("ONCE"), &cfg.Once)
	s.setBoolFromString("watch-config", env("WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
