package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to keep files
// readable. Pointer fields distinguish "unset" from a zero value.
type FileConfig struct {
	DataDir         string   `toml:"data_dir" yaml:"data_dir"`
	DBPath          string   `toml:"db_path" yaml:"db_path"`
	CollectorURL    string   `toml:"collector_url" yaml:"collector_url"`
	UploadPath      string   `toml:"upload_path" yaml:"upload_path"`
	APIKey          string   `toml:"api_key" yaml:"api_key"`
	DeviceID        string   `toml:"device_id" yaml:"device_id"`
	Interval        string   `toml:"interval" yaml:"interval"`
	InitialDelay    string   `toml:"initial_delay" yaml:"initial_delay"`
	RetryBackoff    string   `toml:"retry_backoff" yaml:"retry_backoff"`
	CycleTimeout    string   `toml:"cycle_timeout" yaml:"cycle_timeout"`
	PositionTimeout string   `toml:"position_timeout" yaml:"position_timeout"`
	HTTPTimeout     string   `toml:"http_timeout" yaml:"http_timeout"`
	ProbeAddr       string   `toml:"probe_addr" yaml:"probe_addr"`
	ProbeTimeout    string   `toml:"probe_timeout" yaml:"probe_timeout"`
	Source          string   `toml:"source" yaml:"source"`
	GPSPort         string   `toml:"gps_port" yaml:"gps_port"`
	GPSBaud         int      `toml:"gps_baud" yaml:"gps_baud"`
	StaticLat       *float64 `toml:"static_lat" yaml:"static_lat"`
	StaticLon       *float64 `toml:"static_lon" yaml:"static_lon"`
	ListenAddr      string   `toml:"listen_addr" yaml:"listen_addr"`
	LogFile         string   `toml:"log_file" yaml:"log_file"`
	LogLevel        string   `toml:"log_level" yaml:"log_level"`
	Once            *bool    `toml:"once" yaml:"once"`
	WatchConfig     *bool    `toml:"watch_config" yaml:"watch_config"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.trackship/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".trackship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("db-path", fc.DBPath, &cfg.DBPath)
	s.setString("collector-url", fc.CollectorURL, &cfg.CollectorURL)
	s.setString("upload-path", fc.UploadPath, &cfg.UploadPath)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("probe-addr", fc.ProbeAddr, &cfg.ProbeAddr)
	s.setString("source", fc.Source, &cfg.Source)
	s.setString("gps-port", fc.GPSPort, &cfg.GPSPort)
	s.setString("listen-addr", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"interval", fc.Interval, &cfg.Interval},
		{"initial-delay", fc.InitialDelay, &cfg.InitialDelay},
		{"retry-backoff", fc.RetryBackoff, &cfg.RetryBackoff},
		{"cycle-timeout", fc.CycleTimeout, &cfg.CycleTimeout},
		{"position-timeout", fc.PositionTimeout, &cfg.PositionTimeout},
		{"http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
		{"probe-timeout", fc.ProbeTimeout, &cfg.ProbeTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("gps-baud", fc.GPSBaud, &cfg.GPSBaud)
	s.setCoord("static-lat", fc.StaticLat, &cfg.StaticLat)
	s.setCoord("static-lon", fc.StaticLon, &cfg.StaticLon)

	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
