// Package schedule runs periodic jobs such as resolving the pending post.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/bullbear/pkg/logger"
	"github.com/okian/bullbear/pkg/metrics"
)

// Default runner configuration constants.
const (
	defaultJobTimeout = 2 * time.Minute
)

// Job status labels.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusPanic   = "panic"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Runner runs named jobs on cron schedules. A job never overlaps with itself:
// a tick that fires while the previous run is active is skipped.
type Runner struct {
	cron       *cron.Cron
	name       string
	logger     logger.Logger
	location   *time.Location
	seconds    bool
	jobTimeout time.Duration

	mu      sync.Mutex
	baseCtx context.Context
	running map[string]bool
}

// New creates a runner. It does not fire until Start is called.
func New(opts ...Option) *Runner {
	r := &Runner{
		name:       "scheduler",
		logger:     logger.Get().Named("scheduler"),
		location:   time.UTC,
		jobTimeout: defaultJobTimeout,
		baseCtx:    context.Background(),
		running:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.name != "scheduler" {
		r.logger = r.logger.Named(r.name)
	}

	cronOpts := []cron.Option{cron.WithLocation(r.location)}
	if r.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	r.cron = cron.New(cronOpts...)
	return r
}

// Validate reports whether spec is a valid five-field schedule or descriptor.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%q: %w: %v", spec, ErrInvalidSchedule, err)
	}
	return nil
}

// Add registers job under name on spec.
func (r *Runner) Add(name, spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() { r.run(name, job) })
	if err != nil {
		return fmt.Errorf("job %s %q: %w: %v", name, spec, ErrInvalidSchedule, err)
	}
	r.logger.Info(context.Background(), "job scheduled", logger.String("job", name), logger.String("schedule", spec))
	return nil
}

// run executes one tick of a job.
func (r *Runner) run(name string, job Job) {
	r.mu.Lock()
	if r.running[name] {
		r.mu.Unlock()
		metrics.RecordScheduledRun(name, StatusSkipped)
		r.logger.Warn(context.Background(), "previous run still active, skipping", logger.String("job", name))
		return
	}
	r.running[name] = true
	base := r.baseCtx
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running[name] = false
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(base, r.jobTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			metrics.RecordScheduledRun(name, StatusPanic)
			metrics.RecordErrorByComponent("scheduler", "panic")
			r.logger.Error(ctx, "job panicked", logger.String("job", name), logger.Any("panic", p))
		}
	}()

	start := time.Now()
	if err := job(ctx); err != nil {
		metrics.RecordScheduledRun(name, StatusFailed)
		r.logger.Error(ctx, "job failed",
			logger.String("job", name),
			logger.Error(err),
		)
		return
	}
	metrics.RecordScheduledRun(name, StatusOK)
	r.logger.Debug(ctx, "job done", logger.String("job", name), logger.Any("took", time.Since(start)))
}

// Start begins firing jobs. Job contexts derive from ctx.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()
	r.cron.Start()
	r.logger.Info(ctx, "scheduler started", logger.Int("jobs", len(r.cron.Entries())))
}

// Shutdown stops firing new ticks and waits for running jobs or ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		r.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}
