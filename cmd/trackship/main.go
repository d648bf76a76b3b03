package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/trackship/internal/adapters/fs"
	"github.com/bft-labs/trackship/internal/adapters/gps"
	logAdapter "github.com/bft-labs/trackship/internal/adapters/log"
	"github.com/bft-labs/trackship/internal/cliconfig"
	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
	"github.com/bft-labs/trackship/pkg/trackship"
)

// Exit codes for --once, one per cycle outcome. 75 is EX_TEMPFAIL.
const (
	exitSuccess = 0
	exitFailure = 1
	exitRetry   = 75
)

const longHelp = `Capture the device position on a schedule, keep every sample in a local
SQLite store, and upload the backlog to a collector whenever the network is up.

A sample is only marked synced after the collector accepted it, so crashes
and outages lead to re-sends, never to lost samples.`

var exampleUsage = strings.TrimSpace(`
  trackship --collector-url https://collector.example.com --api-key <key> --gps-port /dev/ttyUSB0
  trackship --config $HOME/.trackship/config.toml --once
  trackship recent -n 20
  trackship status
`)

// exitError carries a process exit code out of a command.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	bootLog, _, _ := logAdapter.New(logAdapter.OutputConfig{})

	root := &cobra.Command{
		Use:           "trackship",
		Short:         "Durable location tracking with store-and-forward upload",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadConfig(cmd, &cfg, cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, file)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.trackship/config.toml)")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the sample database and status file")
	flags.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sample database path (defaults to <data-dir>/trackship.db)")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write JSON logs to this rotating file instead of stderr")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	rf := root.Flags()
	rf.StringVar(&cfg.CollectorURL, "collector-url", cfg.CollectorURL, "base URL of the collector")
	rf.StringVar(&cfg.UploadPath, "upload-path", cfg.UploadPath, "path appended to the collector URL")
	rf.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key sent in the x-api-key header")
	rf.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device id header (defaults to the id stored in the database)")
	rf.DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between periodic cycles")
	rf.DurationVar(&cfg.InitialDelay, "initial-delay", cfg.InitialDelay, "run one extra cycle after this delay at startup (0 disables)")
	rf.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "first retry delay after a transient failure (0 waits for the next interval)")
	rf.DurationVar(&cfg.CycleTimeout, "cycle-timeout", cfg.CycleTimeout, "upper bound for one cycle")
	rf.DurationVar(&cfg.PositionTimeout, "position-timeout", cfg.PositionTimeout, "how long to wait for a position fix")
	rf.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP timeout per upload")
	rf.StringVar(&cfg.ProbeAddr, "probe-addr", cfg.ProbeAddr, "host:port dialled to detect connectivity (defaults to the collector)")
	rf.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "connectivity probe timeout")
	rf.StringVar(&cfg.Source, "source", cfg.Source, "position source (nmea, static)")
	rf.StringVar(&cfg.GPSPort, "gps-port", cfg.GPSPort, "serial device of the NMEA receiver")
	rf.IntVar(&cfg.GPSBaud, "gps-baud", cfg.GPSBaud, "baud rate of the NMEA receiver")
	rf.Float64Var(&cfg.StaticLat, "static-lat", cfg.StaticLat, "latitude reported by the static source")
	rf.Float64Var(&cfg.StaticLon, "static-lon", cfg.StaticLon, "longitude reported by the static source")
	rf.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "serve the read-only display API on this address")
	rf.BoolVar(&cfg.Once, "once", cfg.Once, "run a single cycle and exit (0 success, 75 retry, 1 failure)")
	rf.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reschedule when the config file's interval changes")

	root.AddCommand(newRecentCmd(&cfg, &cfgPath), newStatusCmd(&cfg, &cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()

	var ee exitError
	switch {
	case err == nil:
	case errors.As(err, &ee):
		os.Exit(ee.code)
	default:
		bootLog.Error().Err(err).Msg("trackship")
		os.Exit(exitFailure)
	}
}

// loadConfig layers the config file and TRACKSHIP_* variables under the
// flags the user set. It returns the config file path in use, if any.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile == "" || !cliconfig.FileExists(cfgFile) {
		if cfgPath != "" {
			return "", fmt.Errorf("config file %s not found", cfgPath)
		}
		cfgFile = ""
	} else {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}
	return cfgFile, nil
}

func newLogger(cfg cliconfig.Config) (zerolog.Logger, func(), error) {
	log, closer, err := logAdapter.New(logAdapter.OutputConfig{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("%w: log: %w", domain.ErrInvalidConfig, err)
	}
	return log, func() { _ = closer.Close() }, nil
}

func newSource(cfg cliconfig.Config, logger ports.Logger) trackship.PositionSource {
	if cfg.Source == cliconfig.SourceStatic {
		return gps.NewStatic(cfg.StaticLat, cfg.StaticLon)
	}
	return gps.NewNMEA(gps.NMEAConfig{
		PortPath: cfg.GPSPort,
		BaudRate: cfg.GPSBaud,
		MaxAge:   cfg.Interval,
	}, logger)
}

func run(ctx context.Context, cfg cliconfig.Config, cfgFile string) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info().Interface("config", cfg.Masked()).Msg("configuration")
	logger := logAdapter.NewZerologAdapterWithLogger(log)

	t, err := trackship.New(ctx, trackship.Config{
		DBPath:          cfg.DBPath,
		StatusDir:       cfg.DataDir,
		CollectorURL:    cfg.CollectorURL,
		UploadPath:      cfg.UploadPath,
		APIKey:          cfg.APIKey,
		DeviceID:        cfg.DeviceID,
		Interval:        cfg.Interval,
		InitialDelay:    cfg.InitialDelay,
		RetryBackoff:    cfg.RetryBackoff,
		CycleTimeout:    cfg.CycleTimeout,
		PositionTimeout: cfg.PositionTimeout,
		HTTPTimeout:     cfg.HTTPTimeout,
		ProbeAddr:       cfg.ProbeAddr,
		ProbeTimeout:    cfg.ProbeTimeout,
		ListenAddr:      cfg.ListenAddr,
	},
		trackship.WithPositionSource(newSource(cfg, logger)),
		trackship.WithLogger(logger),
		trackship.WithVersion(getVersion()),
	)
	if err != nil {
		return fmt.Errorf("create tracker: %w", err)
	}
	defer t.Close()

	if cfg.Once {
		report := t.RunOnce(ctx)
		if code := exitCode(report.Outcome); code != exitSuccess {
			return exitError{code: code}
		}
		return nil
	}

	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}

	if cfg.WatchConfig && cfgFile != "" {
		w := fs.NewConfigWatcher(cfgFile, func(ctx context.Context) {
			reloadInterval(t, cfgFile, logger)
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", ports.Err(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("received signal, stopping...")

	if err := t.Stop(); err != nil {
		return fmt.Errorf("stop tracker: %w", err)
	}
	return nil
}

// reloadInterval re-reads the config file and reschedules the periodic job
// when its interval changed. Other keys need a restart.
func reloadInterval(t *trackship.Tracker, path string, logger ports.Logger) {
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		logger.Warn("config reload failed", ports.Err(err))
		return
	}
	if fc.Interval == "" {
		return
	}

	var next cliconfig.Config
	if err := cliconfig.ApplyFileConfig(&next, cliconfig.FileConfig{Interval: fc.Interval}, nil); err != nil {
		logger.Warn("config reload failed", ports.Err(err))
		return
	}
	if next.Interval <= 0 {
		logger.Warn("ignoring non-positive interval", ports.Duration("interval", next.Interval))
		return
	}
	if t.Interval() == next.Interval {
		return
	}
	if err := t.Reschedule(next.Interval); err != nil {
		logger.Warn("reschedule failed", ports.Err(err))
		return
	}
	logger.Info("interval applied", ports.Duration("interval", next.Interval))
}

func exitCode(o domain.Outcome) int {
	switch o {
	case domain.OutcomeSuccess:
		return exitSuccess
	case domain.OutcomeRetry:
		return exitRetry
	default:
		return exitFailure
	}
}
