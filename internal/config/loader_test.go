package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullbear/internal/config"
)

var configEnvVars = []string{
	"BULLBEAR_CONFIG",
	"BULLBEAR_ADDR",
	"BULLBEAR_LOG_LEVEL",
	"BULLBEAR_STORE_DRIVER",
	"BULLBEAR_STORE_DSN",
	"BULLBEAR_SEED_ENABLED",
	"BULLBEAR_RESOLVE_SCHEDULE",
	"BULLBEAR_PRICE_SWING",
	"BULLBEAR_BASE_POINTS",
	"BULLBEAR_MAX_LEADERBOARD_LIMIT",
	"BULLBEAR_GUESS_RATE_BURST",
	"BULLBEAR_SHUTDOWN_TIMEOUT_MS",
	"BULLBEAR_METRICS_REFRESH_INTERVAL_MS",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.BasePoints, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("BULLBEAR_ADDR", ":8080")
			t.Setenv("BULLBEAR_STORE_DRIVER", "sqlite")
			t.Setenv("BULLBEAR_STORE_DSN", "/tmp/bb.db")
			t.Setenv("BULLBEAR_SEED_ENABLED", "false")
			t.Setenv("BULLBEAR_RESOLVE_SCHEDULE", "")
			t.Setenv("BULLBEAR_PRICE_SWING", "2.5")
			t.Setenv("BULLBEAR_BASE_POINTS", "25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "/tmp/bb.db")
				convey.So(cfg.SeedEnabled, convey.ShouldBeFalse)
				convey.So(cfg.ResolveSchedule, convey.ShouldEqual, "")
				convey.So(cfg.PriceSwing, convey.ShouldEqual, 2.5)
				convey.So(cfg.BasePoints, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			t.Setenv("BULLBEAR_CONFIG", writeConfigFile(t, `
addr: ":9090"
store_driver: postgres
store_dsn: "postgres://bb@localhost/bb?sslmode=disable"
resolve_schedule: "@hourly"
max_leaderboard_limit: 50
`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.ResolveSchedule, convey.ShouldEqual, "@hourly")
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
			})

			convey.Convey("And env vars should win over the file", func() {
				t.Setenv("BULLBEAR_MAX_LEADERBOARD_LIMIT", "10")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 10)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("BULLBEAR_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the shutdown timeout is zero", func() {
			t.Setenv("BULLBEAR_SHUTDOWN_TIMEOUT_MS", "0")
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the metrics refresh interval is overridden", func() {
			t.Setenv("BULLBEAR_METRICS_REFRESH_INTERVAL_MS", "2500")
			cfg, err := config.Load(ctx)

			convey.Convey("Then it is used as the gauge refresh interval", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsRefreshInterval(), convey.ShouldEqual, 2500*time.Millisecond)
			})
		})

		convey.Convey("When the resulting config is invalid", func() {
			t.Setenv("BULLBEAR_ADDR", "")
			t.Setenv("BULLBEAR_GUESS_RATE_BURST", "0")
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
