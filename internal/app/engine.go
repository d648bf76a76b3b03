package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// DefaultPositionTimeout bounds the wait for a position reading.
const DefaultPositionTimeout = 30 * time.Second

// EngineConfig contains configuration for the sync engine.
type EngineConfig struct {
	PositionTimeout time.Duration
}

// CycleObserver is notified after every cycle, synchronously.
type CycleObserver interface {
	OnCycleComplete(report domain.CycleReport)
}

// Engine runs capture-persist-sync cycles. It holds no state between cycles;
// every cycle starts from the store.
type Engine struct {
	config    EngineConfig
	source    ports.PositionSource
	store     ports.SampleStore
	gate      ports.ConnectivityGate
	uploader  ports.Uploader
	logger    ports.Logger
	observers []CycleObserver
	now       func() time.Time
	newID     func() string
}

// EngineOption configures optional behavior of the Engine.
type EngineOption func(*Engine)

// WithClock replaces time.Now, which stamps CapturedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers an observer for cycle reports.
func WithObserver(o CycleObserver) EngineOption {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine creates a new engine with the given dependencies.
func NewEngine(
	config EngineConfig,
	source ports.PositionSource,
	store ports.SampleStore,
	gate ports.ConnectivityGate,
	uploader ports.Uploader,
	logger ports.Logger,
	opts ...EngineOption,
) *Engine {
	if config.PositionTimeout <= 0 {
		config.PositionTimeout = DefaultPositionTimeout
	}
	e := &Engine{
		config:   config,
		source:   source,
		store:    store,
		gate:     gate,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddObserver registers an observer after construction.
func (e *Engine) AddObserver(o CycleObserver) {
	e.observers = append(e.observers, o)
}

// RunCycle is the scheduler entry point. It never returns an error; every
// fault is reduced to an outcome.
func (e *Engine) RunCycle(ctx context.Context) domain.Outcome {
	return e.Cycle(ctx).Outcome
}

// Cycle runs one cycle and returns its full report.
func (e *Engine) Cycle(ctx context.Context) domain.CycleReport {
	report := domain.CycleReport{
		ID:        e.newID(),
		StartedAt: e.now(),
		Stage:     domain.StageStart,
	}

	err := e.cycle(ctx, &report)
	report.Outcome = classify(err)
	if err != nil {
		report.Err = err.Error()
	} else {
		report.Stage = domain.StageDone
	}
	report.FinishedAt = e.now()

	e.logReport(report)
	for _, o := range e.observers {
		o.OnCycleComplete(report)
	}
	return report
}

func (e *Engine) cycle(ctx context.Context, report *domain.CycleReport) error {
	if !e.source.Authorized() {
		return domain.ErrPermissionDenied
	}

	pos, err := e.capture(ctx)
	if err != nil {
		return err
	}

	// CapturedAt is when the engine recorded the sample, not when the
	// source obtained the fix.
	capturedAt := e.now().UnixMilli()
	id, err := e.store.Insert(ctx, pos.Latitude, pos.Longitude, capturedAt)
	if err != nil {
		return storageFault(err)
	}
	report.Stage = domain.StageCaptured
	report.Captured = &domain.Sample{
		ID:         id,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		CapturedAt: capturedAt,
	}

	if !e.gate.HasInternet(ctx) {
		report.Stage = domain.StageSkipUpload
		e.logger.Info("network unavailable, upload deferred", ports.Int64("sample_id", id))
		return nil
	}

	report.Stage = domain.StageUploading
	return e.drain(ctx, report)
}

func (e *Engine) capture(ctx context.Context) (*domain.Position, error) {
	posCtx, cancel := context.WithTimeout(ctx, e.config.PositionTimeout)
	defer cancel()

	pos, err := e.source.LastKnownPosition(posCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptureTimeout, err)
	}
	if pos == nil {
		return nil, domain.ErrCaptureTimeout
	}
	return pos, nil
}

// drain uploads the backlog oldest first and stops at the first sample the
// collector does not accept, so acknowledgments never get reordered. At most
// one sample is sent but not yet marked at any time.
func (e *Engine) drain(ctx context.Context, report *domain.CycleReport) error {
	backlog, err := e.store.ListUnsynced(ctx)
	if err != nil {
		return storageFault(err)
	}

	for i, smp := range backlog {
		report.Remaining = len(backlog) - i

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: cycle budget expired: %w", domain.ErrUploadTransport, err)
		}
		if err := e.uploader.Upload(ctx, smp); err != nil {
			e.logger.Warn("upload stopped",
				ports.Int64("sample_id", smp.ID),
				ports.Int("remaining", report.Remaining),
				ports.Err(err),
			)
			return uploadFault(err)
		}
		// The collector already has the sample; acknowledge it even if the
		// cycle budget ran out meanwhile.
		if err := e.store.MarkSynced(context.WithoutCancel(ctx), smp.ID); err != nil {
			return storageFault(err)
		}
		report.Uploaded++
	}
	report.Remaining = 0
	return nil
}

// classify maps a cycle fault onto an outcome.
func classify(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeSuccess
	case cycleEnded(err):
		return domain.OutcomeRetry
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrStorageFault):
		return domain.OutcomeFailure
	default:
		// Capture timeouts, rejections, transport failures and anything
		// unclassified are transient.
		return domain.OutcomeRetry
	}
}

// storageFault marks err as a storage fault unless it only reports that the
// cycle context ended, which is transient.
func storageFault(err error) error {
	if cycleEnded(err) {
		return fmt.Errorf("%w: cycle budget expired: %w", domain.ErrUploadTransport, err)
	}
	if errors.Is(err, domain.ErrStorageFault) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageFault, err)
}

func cycleEnded(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func uploadFault(err error) error {
	if errors.Is(err, domain.ErrUploadRejected) || errors.Is(err, domain.ErrUploadTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUploadTransport, err)
}

func (e *Engine) logReport(r domain.CycleReport) {
	fields := []ports.Field{
		ports.String("cycle_id", r.ID),
		ports.String("outcome", r.Outcome.String()),
		ports.String("stage", string(r.Stage)),
		ports.Bool("captured", r.Captured != nil),
		ports.Int("uploaded", r.Uploaded),
		ports.Int("remaining", r.Remaining),
		ports.Duration("duration", r.Duration()),
	}
	switch r.Outcome {
	case domain.OutcomeSuccess:
		e.logger.Info("cycle complete", fields...)
	case domain.OutcomeRetry:
		e.logger.Warn("cycle complete", append(fields, ports.String("error", r.Err))...)
	default:
		e.logger.Error("cycle complete", append(fields, ports.String("error", r.Err))...)
	}
}
