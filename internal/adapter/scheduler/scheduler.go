package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"smartnotes/internal/platform/metrics"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobID identifies a registered job.
type JobID = cron.EntryID

// OverlapPolicy controls what happens when a run is due while the previous
// one is still running.
type OverlapPolicy int

const (
	// AllowOverlap runs concurrently (default).
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning drops the due run.
	SkipIfRunning
	// DelayIfRunning waits for the previous run to finish.
	DelayIfRunning
)

// JobOptions configures a job.
type JobOptions struct {
	// Name is used in logs and metrics.
	Name string
	// Timeout bounds one run. Zero means no limit.
	Timeout time.Duration
	// OverlapPolicy decides what a due run does while the last one is busy.
	OverlapPolicy OverlapPolicy
}

// jobWrapper pairs a job with its options.
type jobWrapper struct {
	job     JobFunc
	options JobOptions
	running sync.Mutex // held for the duration of a run under Skip/Delay policies
}

// cronLogger adapts slog to cron.Logger. cron logs every wake-up at info
// level, which is demoted to debug here.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}

// Hooks are optional observers of job runs. They are called on the job's
// goroutine and must not block.
type Hooks struct {
	// OnJobStart is called before a run that was not skipped.
	OnJobStart func(name string)
	// OnJobFinish is called after every started run. A panic in the job
	// arrives here as an error.
	OnJobFinish func(name string, d time.Duration, err error)
}

// Config configures Scheduler.
type Config struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	Hooks  Hooks
}

// Scheduler runs cron jobs until stopped. Schedules use the six-field cron
// syntax with seconds, or descriptors such as "@every 1m". Intervals under
// a second are rounded up to one second.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	hooks  Hooks

	// ctx is handed to every run and canceled on Stop.
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce  sync.Once
	startOnce sync.Once
}

// New creates a scheduler bound to a background context.
func New(cfg Config) *Scheduler {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext creates a scheduler that stops when parent is done.
func NewWithContext(parent context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{logger: logger}),
		),
		logger: logger,
		hooks:  cfg.Hooks,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddCronJob registers job with default options.
func (s *Scheduler) AddCronJob(schedule string, job JobFunc) (JobID, error) {
	return s.AddCronJobWithOptions(schedule, job, JobOptions{})
}

// AddCronJobWithOptions registers job on schedule. Jobs added after Start
// are picked up on the next tick.
func (s *Scheduler) AddCronJobWithOptions(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	if opts.Name == "" {
		opts.Name = "unnamed"
	}
	w := &jobWrapper{job: job, options: opts}

	id, err := s.cron.AddFunc(schedule, func() { s.run(w) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s job %q: %w", opts.Name, schedule, err)
	}
	s.logger.Info("job scheduled", slog.String("name", opts.Name), slog.String("schedule", schedule), slog.Int("id", int(id)))
	return id, nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(id JobID) {
	s.cron.Remove(id)
}

// Start begins running jobs. It is idempotent.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.cron.Start()
		// Stop together with the parent context.
		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.stopOnce.Do(s.stop)
}

// StopContext stops the scheduler and waits for running jobs until ctx is
// done. Running jobs see their context canceled either way.
func (s *Scheduler) StopContext(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop deadline exceeded")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler has not been stopped.
func (s *Scheduler) IsRunning() bool {
	return s.ctx.Err() == nil
}

// stop halts cron and waits for runs in flight.
func (s *Scheduler) stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// run executes one due run of w under its overlap policy and timeout, then
// reports the outcome.
func (s *Scheduler) run(w *jobWrapper) {
	name := w.options.Name
	switch w.options.OverlapPolicy {
	case SkipIfRunning:
		if !w.running.TryLock() {
			s.logger.Debug("job still running, skipped", slog.String("name", name))
			return
		}
		defer w.running.Unlock()
	case DelayIfRunning:
		w.running.Lock()
		defer w.running.Unlock()
	}

	if s.hooks.OnJobStart != nil {
		s.hooks.OnJobStart(name)
	}

	ctx := s.ctx
	if w.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.options.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.invoke(ctx, w)
	dur := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.logger.Error("job failed", slog.String("name", name), slog.Duration("dur", dur), slog.Any("error", err))
	} else {
		s.logger.Debug("job completed", slog.String("name", name), slog.Duration("dur", dur))
	}
	metrics.JobRunsTotal.WithLabelValues(name, outcome).Inc()
	if s.hooks.OnJobFinish != nil {
		s.hooks.OnJobFinish(name, dur, err)
	}
}

// invoke calls the job and returns a panic as an error.
func (s *Scheduler) invoke(ctx context.Context, w *jobWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.job(ctx)
}
