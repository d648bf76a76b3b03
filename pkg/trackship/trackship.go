package trackship

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bft-labs/trackship/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/trackship/internal/adapters/http"
	"github.com/bft-labs/trackship/internal/adapters/httpapi"
	logAdapter "github.com/bft-labs/trackship/internal/adapters/log"
	"github.com/bft-labs/trackship/internal/adapters/netcheck"
	"github.com/bft-labs/trackship/internal/adapters/sqlite"
	"github.com/bft-labs/trackship/internal/app"
	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

const (
	// JobName is the periodic tracking job.
	JobName = "location-tracking"

	// OnceJobName is the one-shot job used for the initial delay and for
	// TriggerOnce.
	OnceJobName = JobName + "/once"

	// ShutdownTimeout is the maximum time Stop waits for a running cycle.
	ShutdownTimeout = 30 * time.Second
)

// Tracker captures positions on a schedule, persists them, and drains the
// backlog to a collector. Use New() to create an instance, then Start().
type Tracker struct {
	config    Config
	logger    ports.Logger
	lifecycle *app.Lifecycle
	store     *sqlite.Store
	status    *fs.StatusFileRepository
	engine    *app.Engine
	source    ports.PositionSource
	hub       *httpapi.Hub
	api       *httpapi.Server
	deviceID  string

	mu        sync.Mutex
	scheduler *app.Scheduler
	cancel    context.CancelFunc
	apiDone   chan error
}

// New opens the sample store and wires the engine. The instance is created in
// StateStopped; call Start() to begin periodic tracking or RunOnce() for a
// single cycle.
func New(ctx context.Context, cfg Config, opts ...Option) (*Tracker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logAdapter.NewNoopLogger(),
		version:    "dev",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.source == nil {
		return nil, fmt.Errorf("%w: a position source is required", domain.ErrInvalidConfig)
	}

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		if deviceID, err = store.DeviceID(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	gate := o.gate
	if gate == nil {
		addr := cfg.ProbeAddr
		if addr == "" {
			if addr, err = netcheck.ProbeAddr(cfg.CollectorURL); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("%w: collector url: %w", domain.ErrInvalidConfig, err)
			}
		}
		gate = netcheck.NewGate(addr, cfg.ProbeTimeout, o.logger)
	}

	uploader := httpAdapter.NewUploader(o.httpClient, httpAdapter.UploaderConfig{
		CollectorURL: cfg.CollectorURL,
		UploadPath:   cfg.UploadPath,
		APIKey:       cfg.APIKey,
		DeviceID:     deviceID,
		Hostname:     hostname(),
		Version:      o.version,
	}, o.logger)

	statusDir := cfg.StatusDir
	if statusDir == "" {
		statusDir = filepath.Dir(cfg.DBPath)
	}
	status := fs.NewStatusFileRepository(statusDir, o.logger)

	engineOpts := []app.EngineOption{app.WithObserver(status)}
	if o.clock != nil {
		engineOpts = append(engineOpts, app.WithClock(o.clock))
	}
	for _, obs := range o.observers {
		engineOpts = append(engineOpts, app.WithObserver(obs))
	}

	t := &Tracker{
		config:    cfg,
		logger:    o.logger,
		lifecycle: app.NewLifecycle(o.logger, o.stateListener),
		store:     store,
		status:    status,
		source:    o.source,
		deviceID:  deviceID,
	}

	if cfg.ListenAddr != "" {
		t.hub = httpapi.NewHub(o.logger)
		t.api = httpapi.NewServer(store, store, status, t.hub, o.logger)
		engineOpts = append(engineOpts, app.WithObserver(t.hub))
	}

	t.engine = app.NewEngine(
		app.EngineConfig{PositionTimeout: cfg.PositionTimeout},
		o.source, store, gate, uploader, o.logger,
		engineOpts...,
	)

	o.logger.Info("tracker ready",
		ports.String("db", store.Path()),
		ports.String("device_id", deviceID),
		ports.String("upload_url", uploader.URL()),
	)
	return t, nil
}

// Start schedules the periodic tracking job and returns immediately. The
// first cycle runs right away. The context bounds the lifetime of all jobs.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.scheduler = app.NewScheduler(runCtx, t.engine.RunCycle, app.SchedulerConfig{
		CycleTimeout:    t.config.CycleTimeout,
		RetryBackoff:    t.config.RetryBackoff,
		RetryBackoffMax: t.config.Interval,
	}, t.logger)

	if err := t.schedule(); err != nil {
		cancel()
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "schedule failed: "+err.Error())
		return err
	}

	if t.api != nil {
		t.apiDone = make(chan error, 1)
		go func() {
			err := t.api.Run(runCtx, t.config.ListenAddr)
			if err != nil {
				t.logger.Error("display api stopped", ports.Err(err))
			}
			t.apiDone <- err
		}()
	}

	return t.lifecycle.TransitionTo(app.StateRunning, "jobs scheduled")
}

func (t *Tracker) schedule() error {
	if err := t.scheduler.Schedule(JobName, t.config.Interval, app.PolicyKeep); err != nil {
		return err
	}
	if t.config.InitialDelay > 0 {
		return t.scheduler.ScheduleOnce(OnceJobName, t.config.InitialDelay)
	}
	return nil
}

// Stop cancels all jobs and waits up to ShutdownTimeout for a running cycle.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := t.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}

	err := t.scheduler.Stop(ShutdownTimeout)
	t.cancel()
	if t.apiDone != nil {
		<-t.apiDone
		t.apiDone = nil
	}

	if err != nil {
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	_ = t.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return nil
}

// Close stops the tracker if needed and releases the store and the position
// source.
func (t *Tracker) Close() error {
	var errs []error
	if t.lifecycle.CanStop() {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := t.source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (t *Tracker) Status() State {
	return t.lifecycle.State()
}

// RunOnce runs a single cycle synchronously, bounded by CycleTimeout. It does
// not require Start.
func (t *Tracker) RunOnce(ctx context.Context) CycleReport {
	ctx, cancel := context.WithTimeout(ctx, t.config.CycleTimeout)
	defer cancel()
	return t.engine.Cycle(ctx)
}

// TriggerOnce requests one extra cycle after delay. While such a request is
// pending, further requests are ignored.
func (t *Tracker) TriggerOnce(delay time.Duration) error {
	s, err := t.runningScheduler()
	if err != nil {
		return err
	}
	return s.ScheduleOnce(OnceJobName, delay)
}

// Reschedule replaces the periodic job with one at the new interval. The
// replacement runs a cycle immediately.
func (t *Tracker) Reschedule(interval time.Duration) error {
	s, err := t.runningScheduler()
	if err != nil {
		return err
	}
	if cur, ok := s.Interval(JobName); ok && cur == interval {
		return nil
	}
	if err := s.Schedule(JobName, interval, app.PolicyReplace); err != nil {
		return err
	}
	t.mu.Lock()
	t.config.Interval = interval
	t.mu.Unlock()
	return nil
}

// Interval returns the current period of the tracking job.
func (t *Tracker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config.Interval
}

// Jobs returns the names of scheduled jobs.
func (t *Tracker) Jobs() []string {
	s, err := t.runningScheduler()
	if err != nil {
		return nil
	}
	return s.Jobs()
}

// Recent returns up to n samples, newest first. n <= 0 means 50.
func (t *Tracker) Recent(ctx context.Context, n int) ([]Sample, error) {
	return t.store.ListRecent(ctx, n)
}

// Stats summarizes the store and the last cycle.
type Stats struct {
	DeviceID  string
	Total     int
	Unsynced  int
	LastCycle *CycleReport
}

// Stats returns store counters and the last persisted cycle report.
func (t *Tracker) Stats(ctx context.Context) (Stats, error) {
	total, unsynced, err := t.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	last, err := t.status.Load(ctx)
	if err != nil {
		t.logger.Warn("failed to load status file", ports.Err(err))
	}
	return Stats{DeviceID: t.deviceID, Total: total, Unsynced: unsynced, LastCycle: last}, nil
}

// Handler returns the display API handler, or nil if ListenAddr is unset.
func (t *Tracker) Handler() http.Handler {
	if t.api == nil {
		return nil
	}
	return t.api.Handler()
}

func (t *Tracker) runningScheduler() (*app.Scheduler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lifecycle.State() != app.StateRunning || t.scheduler == nil {
		return nil, domain.ErrNotRunning
	}
	return t.scheduler, nil
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
