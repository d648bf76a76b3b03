package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/trackship/internal/domain"
	"github.com/bft-labs/trackship/internal/ports"
)

// Policy decides what Schedule does when a job with the same name exists.
type Policy int

const (
	// PolicyKeep leaves the existing job untouched.
	PolicyKeep Policy = iota

	// PolicyReplace cancels the existing job and installs the new one.
	PolicyReplace
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	if p == PolicyReplace {
		return "replace"
	}
	return "keep"
}

const retrySuffix = "/retry"

// RunFunc is one unit of work, typically Engine.RunCycle.
type RunFunc func(ctx context.Context) domain.Outcome

// SchedulerConfig contains configuration for the scheduler.
type SchedulerConfig struct {
	// CycleTimeout bounds each run. Zero means no bound beyond Stop.
	CycleTimeout time.Duration

	// RetryBackoff is the first delay before re-running a job whose run
	// returned OutcomeRetry. Zero disables retry jobs; the next periodic tick
	// is the retry.
	RetryBackoff time.Duration

	// RetryBackoffMax caps the retry delay.
	RetryBackoffMax time.Duration
}

// Scheduler runs named periodic and one-shot jobs. At most one job exists per
// name, and a periodic job never overlaps itself. Different jobs may run
// concurrently.
type Scheduler struct {
	config SchedulerConfig
	run    RunFunc
	logger ports.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	jobs     map[string]*job
	backoffs map[string]*backoff
}

type job struct {
	name     string
	interval time.Duration // zero for one-shot jobs
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler whose jobs live until ctx is cancelled or
// Stop is called.
func NewScheduler(ctx context.Context, run RunFunc, config SchedulerConfig, logger ports.Logger) *Scheduler {
	if config.RetryBackoffMax <= 0 {
		config.RetryBackoffMax = DefaultBackoffMax
	}
	sctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		config:   config,
		run:      run,
		logger:   logger,
		ctx:      sctx,
		cancel:   cancel,
		jobs:     make(map[string]*job),
		backoffs: make(map[string]*backoff),
	}
}

// Schedule installs a periodic job. The first run starts immediately, then
// one run per interval.
func (s *Scheduler) Schedule(name string, interval time.Duration, policy Policy) error {
	if interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return domain.ErrNotRunning
	}
	if existing, ok := s.jobs[name]; ok {
		if policy == PolicyKeep {
			s.logger.Debug("job already scheduled, keeping existing",
				ports.String("job", name))
			return nil
		}
		existing.cancel()
		delete(s.jobs, name)
	}
	// Retry delays are capped at the interval, so start over with the new one.
	delete(s.backoffs, name)

	j := s.newJob(name, interval)
	s.wg.Add(1)
	go s.periodic(j)

	s.logger.Info("job scheduled",
		ports.String("job", name),
		ports.Duration("interval", interval),
		ports.String("policy", policy.String()),
	)
	return nil
}

// ScheduleOnce installs a one-shot job that runs after delay. If a job with
// that name is already pending or running, the call is a no-op.
func (s *Scheduler) ScheduleOnce(name string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil {
		return domain.ErrNotRunning
	}
	if _, ok := s.jobs[name]; ok {
		s.logger.Debug("one-shot job already pending", ports.String("job", name))
		return nil
	}

	j := s.newJob(name, 0)
	s.wg.Add(1)
	go s.once(j, delay)

	s.logger.Info("one-shot job scheduled",
		ports.String("job", name),
		ports.Duration("delay", delay),
	)
	return nil
}

// Cancel removes a job. A run in progress sees its context cancelled.
func (s *Scheduler) Cancel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return domain.ErrUnknownJob
	}
	j.cancel()
	delete(s.jobs, name)
	return nil
}

// Jobs returns the names of scheduled jobs, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Interval returns the period of a scheduled periodic job.
func (s *Scheduler) Interval(name string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok || j.interval == 0 {
		return 0, false
	}
	return j.interval, true
}

// Stop cancels every job and waits for running work, up to timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	// Under mu so no Schedule call can add a worker after Wait begins.
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout, abandoning running jobs",
			ports.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}

func (s *Scheduler) newJob(name string, interval time.Duration) *job {
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{name: name, interval: interval, ctx: ctx, cancel: cancel}
	s.jobs[name] = j
	return j
}

// release drops j from the registry unless it was already replaced.
func (s *Scheduler) release(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobs[j.name] == j {
		delete(s.jobs, j.name)
	}
	j.cancel()
}

func (s *Scheduler) periodic(j *job) {
	defer s.wg.Done()
	defer s.release(j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		s.execute(j)

		// Ticks that fired while the run was active are coalesced.
		select {
		case <-ticker.C:
			s.logger.Debug("run overlapped a tick, coalesced", ports.String("job", j.name))
		default:
		}

		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) once(j *job, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-j.ctx.Done():
		s.release(j)
		return
	case <-timer.C:
	}

	outcome := s.runBounded(j)
	// Free the name before scheduling a follow-up retry under it.
	s.release(j)
	s.afterRun(j.name, 0, outcome)
}

func (s *Scheduler) execute(j *job) {
	outcome := s.runBounded(j)
	s.afterRun(j.name, j.interval, outcome)
}

func (s *Scheduler) runBounded(j *job) domain.Outcome {
	ctx := j.ctx
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}
	return s.run(ctx)
}

// afterRun applies the outcome policy: RETRY schedules one delayed retry,
// SUCCESS resets the backoff, FAILURE only logs and waits for the next tick.
func (s *Scheduler) afterRun(name string, interval time.Duration, outcome domain.Outcome) {
	base := strings.TrimSuffix(name, retrySuffix)

	switch outcome {
	case domain.OutcomeSuccess:
		s.mu.Lock()
		if b, ok := s.backoffs[base]; ok {
			b.Reset()
		}
		s.mu.Unlock()

	case domain.OutcomeRetry:
		if s.config.RetryBackoff <= 0 {
			return
		}
		delay := s.nextRetryDelay(base, interval)
		if err := s.ScheduleOnce(base+retrySuffix, delay); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			s.logger.Error("failed to schedule retry", ports.String("job", base), ports.Err(err))
		}

	case domain.OutcomeFailure:
		s.logger.Error("job failed, no retry scheduled", ports.String("job", name))
	}
}

func (s *Scheduler) nextRetryDelay(base string, interval time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backoffs[base]
	if !ok {
		max := s.config.RetryBackoffMax
		if interval > 0 && interval < max {
			max = interval
		}
		b = newBackoff(s.config.RetryBackoff, max)
		s.backoffs[base] = b
	}
	return b.Next()
}
