package schedule

import (
	"time"

	"github.com/okian/bullbear/pkg/logger"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithName sets the runner name for identification and logging.
func WithName(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.name = name
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLocation sets the time zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithSeconds accepts schedules with a leading seconds field.
func WithSeconds() Option {
	return func(r *Runner) {
		r.seconds = true
	}
}

// WithJobTimeout bounds a single job run.
func WithJobTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.jobTimeout = d
		}
	}
}
