package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfig_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `collector_url = "https://collector.example.com"
api_key = "k"
interval = "5m"
source = "static"
static_lat = -33.8688
static_lon = 151.2093
watch_config = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.CollectorURL != "https://collector.example.com" || fc.Interval != "5m" {
		t.Errorf("fc = %+v", fc)
	}
	if fc.StaticLat == nil || *fc.StaticLat != -33.8688 {
		t.Errorf("StaticLat = %v", fc.StaticLat)
	}
	if fc.WatchConfig == nil || *fc.WatchConfig {
		t.Errorf("WatchConfig = %v, want false", fc.WatchConfig)
	}
}

func TestLoadFileConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `collector_url: https://collector.example.com
retry_backoff: 1m
source: nmea
gps_port: /dev/ttyUSB0
gps_baud: 4800
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.GPSPort != "/dev/ttyUSB0" || fc.GPSBaud != 4800 || fc.RetryBackoff != "1m" {
		t.Errorf("fc = %+v", fc)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFileConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("missing file: expected error")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("interval = = 1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("malformed file: expected error")
	}
}

func TestApplyFileConfig(t *testing.T) {
	lat := -12.5
	falseVal := false

	tests := []struct {
		name    string
		fc      FileConfig
		changed map[string]bool
		initial Config
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "applies values",
			fc: FileConfig{
				CollectorURL: "https://c.example",
				Interval:     "5m",
				InitialDelay: "10s",
				GPSBaud:      4800,
				StaticLat:    &lat,
				WatchConfig:  &falseVal,
			},
			changed: map[string]bool{},
			initial: DefaultConfig(),
			check: func(t *testing.T, c Config) {
				if c.CollectorURL != "https://c.example" || c.Interval != 5*time.Minute || c.InitialDelay != 10*time.Second {
					t.Errorf("config = %+v", c)
				}
				if c.GPSBaud != 4800 || c.StaticLat != -12.5 || c.WatchConfig {
					t.Errorf("config = %+v", c)
				}
			},
		},
		{
			name:    "respects changed flags",
			fc:      FileConfig{CollectorURL: "https://file.example", Interval: "5m"},
			changed: map[string]bool{"collector-url": true},
			initial: Config{CollectorURL: "https://flag.example"},
			check: func(t *testing.T, c Config) {
				if c.CollectorURL != "https://flag.example" {
					t.Errorf("CollectorURL = %q, flag should win", c.CollectorURL)
				}
				if c.Interval != 5*time.Minute {
					t.Errorf("Interval = %v, want 5m", c.Interval)
				}
			},
		},
		{
			name:    "invalid duration",
			fc:      FileConfig{RetryBackoff: "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fc, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
