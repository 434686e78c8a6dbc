package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/adapters/pricefeed"
	"github.com/okian/bullbear/internal/adapters/repository"
	"github.com/okian/bullbear/internal/config"
	"github.com/okian/bullbear/internal/seed"
	"github.com/okian/bullbear/pkg/logger"
)

// openStore opens the store selected by cfg.StoreDriver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(ctx, repository.WithMetricsUpdateInterval(cfg.MetricsRefreshInterval())), nil
	case config.DriverSQLite:
		return repository.NewSQLStore(ctx, repository.DriverSQLite, cfg.StoreDSN)
	case config.DriverPostgres:
		return repository.NewSQLStore(ctx, repository.DriverPostgres, cfg.StoreDSN,
			repository.WithConnMaxLifetime(30*time.Minute))
	default:
		return nil, fmt.Errorf("%q: %w", cfg.StoreDriver, repository.ErrUnknownDriver)
	}
}

// seedStore loads the configured fixtures into an empty store.
func seedStore(ctx context.Context, cfg *config.Config, store repository.Store) error {
	if !cfg.SeedEnabled {
		return nil
	}
	var (
		f   seed.Fixtures
		err error
	)
	if cfg.SeedFile != "" {
		f, err = seed.LoadFile(cfg.SeedFile)
	} else {
		f, err = seed.Default()
	}
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, store, f, time.Now().UTC())
	return err
}

// newPriceSource builds the simulated closing-price source with throttling
// and retries around it.
func newPriceSource(cfg *config.Config) pricefeed.Source {
	sim := pricefeed.NewSimulated(pricefeed.WithSwing(decimal.NewFromFloat(cfg.PriceSwing)))
	throttled := pricefeed.NewThrottled(sim, cfg.PriceRequestsPerSec)
	return pricefeed.NewRetrying(throttled, pricefeed.WithMaxElapsed(cfg.PriceRetryMaxElapsed()))
}

func logConfig(ctx context.Context, log logger.Logger, cfg *config.Config) {
	log.Info(ctx, "configuration loaded",
		logger.String("addr", cfg.Addr),
		logger.String("storeDriver", cfg.StoreDriver),
		logger.Any("seedEnabled", cfg.SeedEnabled),
		logger.String("metricsRefreshInterval", cfg.MetricsRefreshInterval().String()),
		logger.String("resolveSchedule", cfg.ResolveSchedule),
		logger.Float64("priceSwing", cfg.PriceSwing),
		logger.Any("basePoints", cfg.BasePoints),
	)
}
