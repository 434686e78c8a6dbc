package pricefeed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/domain/model"
)

// Default simulation constants.
const (
	DefaultSwing = 15
)

// SimOption applies a configuration option to Simulated.
type SimOption func(*Simulated)

// WithSwing sets the absolute move applied to the opening price.
func WithSwing(swing decimal.Decimal) SimOption {
	return func(s *Simulated) {
		if swing.IsPositive() {
			s.swing = swing
		}
	}
}

// WithSeed makes the sequence of moves reproducible.
func WithSeed(seed int64) SimOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // simulation, not security
	}
}

// Simulated moves the index up or down by a fixed swing with equal odds.
type Simulated struct {
	mu    sync.Mutex
	swing decimal.Decimal
	rng   *rand.Rand
}

// NewSimulated creates a simulated source.
func NewSimulated(opts ...SimOption) *Simulated {
	s := &Simulated{
		swing: decimal.NewFromInt(DefaultSwing),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // simulation, not security
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample implements Source. A downward move that would not leave a positive
// price moves up instead.
func (s *Simulated) Sample(ctx context.Context, post model.Post) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	s.mu.Lock()
	up := s.rng.Float64() > 0.5
	s.mu.Unlock()
	if !up {
		if after := post.PriceBefore.Sub(s.swing); after.IsPositive() {
			return after, nil
		}
	}
	return post.PriceBefore.Add(s.swing), nil
}
