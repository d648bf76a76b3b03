package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// OutputConfig selects where process logs go.
type OutputConfig struct {
	// File enables rotating file output when non-empty.
	File string

	// Level is a zerolog level name; empty means info.
	Level string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. Without a file it writes human-readable
// lines to stderr; with a file it writes JSON lines rotated by lumberjack.
// The returned closer releases the file, if any.
func New(cfg OutputConfig) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		level = l
	}

	if cfg.File == "" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(out).Level(level).With().Timestamp().Logger(), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return zerolog.Logger{}, nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
	}
	return zerolog.New(rotator).Level(level).With().Timestamp().Logger(), rotator, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
