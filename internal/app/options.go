package service

import (
	"time"

	"github.com/okian/bullbear/internal/adapters/pricefeed"
	"github.com/okian/bullbear/internal/adapters/repository"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPriceSource sets where closing prices are sampled from.
func WithPriceSource(src pricefeed.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.prices = src
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithBasePoints builds the scoring engine with the given base points.
func WithBasePoints(points int64) Option {
	return func(s *Service) {
		if points > 0 {
			s.engine = scoring.NewEngine(scoring.WithBasePoints(points))
		}
	}
}

// WithResolveSchedule enables the scheduled resolution job. An empty spec
// leaves resolution to explicit calls.
func WithResolveSchedule(spec string) Option {
	return func(s *Service) {
		s.resolveSchedule = spec
	}
}

// WithMaxLeaderboardLimit caps how many entries TopN returns.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new entity ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
