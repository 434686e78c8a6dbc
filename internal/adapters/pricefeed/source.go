// Package pricefeed samples the closing index price used to resolve a post.
package pricefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/domain/model"
)

// Source returns the closing price for a post.
type Source interface {
	Sample(ctx context.Context, post model.Post) (decimal.Decimal, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, post model.Post) (decimal.Decimal, error)

// Sample implements Source.
func (f SourceFunc) Sample(ctx context.Context, post model.Post) (decimal.Decimal, error) {
	return f(ctx, post)
}

// Fixed returns preset prices by post id. Posts without a preset price fail with ErrNoPrice.
type Fixed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewFixed creates a Fixed source seeded with prices.
func NewFixed(prices map[string]decimal.Decimal) *Fixed {
	f := &Fixed{prices: make(map[string]decimal.Decimal, len(prices))}
	for id, p := range prices {
		f.prices[id] = p
	}
	return f
}

// Set presets the closing price for a post.
func (f *Fixed) Set(postID string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[postID] = price
}

// Sample implements Source.
func (f *Fixed) Sample(ctx context.Context, post model.Post) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[post.ID]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("post %s: %w", post.ID, ErrNoPrice)
	}
	return p, nil
}
