package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/pkg/metrics"
)

// Default retry constants.
const (
	DefaultMaxElapsed      = 30 * time.Second
	defaultInitialInterval = 100 * time.Millisecond
)

// RetryOption applies a configuration option to Retrying.
type RetryOption func(*Retrying)

// WithMaxElapsed bounds the total time spent retrying one sample.
func WithMaxElapsed(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.maxElapsed = d
		}
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d > 0 {
			r.initialInterval = d
		}
	}
}

// Retrying retries failed samples with exponential backoff. ErrNoPrice is
// permanent and returned immediately.
type Retrying struct {
	next            Source
	maxElapsed      time.Duration
	initialInterval time.Duration
}

// NewRetrying wraps next with exponential backoff.
func NewRetrying(next Source, opts ...RetryOption) *Retrying {
	r := &Retrying{next: next, maxElapsed: DefaultMaxElapsed, initialInterval: defaultInitialInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sample implements Source.
func (r *Retrying) Sample(ctx context.Context, post model.Post) (decimal.Decimal, error) {
	start := time.Now()
	var (
		price    decimal.Decimal
		attempts int
	)
	operation := func() error {
		attempts++
		if attempts > 1 {
			metrics.RecordPriceSampleRetry()
		}
		p, err := r.next.Sample(ctx, post)
		if err != nil {
			if errors.Is(err, ErrNoPrice) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return err
		}
		price = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxElapsedTime = r.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		metrics.RecordPriceSampleError()
		return decimal.Decimal{}, fmt.Errorf("sample post %s after %d attempts: %w", post.ID, attempts, err)
	}
	metrics.RecordPriceSample(float64(time.Since(start).Microseconds()) / 1000)
	return price, nil
}
