package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullbear/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.SeedEnabled, convey.ShouldBeTrue)
			convey.So(cfg.ResolveSchedule, convey.ShouldEqual, "*/5 * * * *")
			convey.So(cfg.PriceSwing, convey.ShouldEqual, 15)
			convey.So(cfg.BasePoints, convey.ShouldEqual, 10)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.PriceRetryMaxElapsed(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.MetricsRefreshInterval(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("An empty addr is invalid", func() {
			cfg.Addr = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Postgres requires a DSN", func() {
			cfg.StoreDriver = "postgres"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			cfg.StoreDSN = "postgres://localhost/bullbear?sslmode=disable"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("SQLite gets a default file", func() {
			cfg.StoreDriver = "SQLite"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.StoreDSN, convey.ShouldEqual, "bullbear.db")
		})

		convey.Convey("Unknown drivers are rejected", func() {
			cfg.StoreDriver = "mongo"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Non-positive scoring and rate values are rejected", func() {
			for _, mutate := range []func(*config.Config){
				func(c *config.Config) { c.BasePoints = 0 },
				func(c *config.Config) { c.PriceSwing = 0 },
				func(c *config.Config) { c.PriceRequestsPerSec = 0 },
				func(c *config.Config) { c.PriceRetryMaxElapsedMS = 0 },
				func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
				func(c *config.Config) { c.GuessRateBurst = 0 },
			} {
				c := config.New(context.Background())
				mutate(c)
				convey.So(errors.Is(c.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("A zero shutdown timeout is rejected", func() {
			cfg.ShutdownTimeoutMS = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "shutdown_timeout_ms")
			cfg.ShutdownTimeoutMS = 1
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("A zero metrics refresh interval is rejected", func() {
			cfg.MetricsRefreshIntervalMS = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_refresh_interval_ms")
		})
	})
}
