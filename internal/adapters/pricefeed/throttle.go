package pricefeed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/okian/bullbear/internal/domain/model"
)

// Throttled limits how often the wrapped source is called.
type Throttled struct {
	next    Source
	limiter *rate.Limiter
}

// NewThrottled allows requestsPerSec samples per second with an equal burst.
func NewThrottled(next Source, requestsPerSec int) *Throttled {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), requestsPerSec),
	}
}

// Sample implements Source.
func (t *Throttled) Sample(ctx context.Context, post model.Post) (decimal.Decimal, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return decimal.Decimal{}, fmt.Errorf("price rate limit: %w", err)
	}
	return t.next.Sample(ctx, post)
}
