package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullbear/internal/adapters/repository"
	"github.com/okian/bullbear/internal/config"
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given the main application wiring", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("When the memory driver is selected", func() {
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer store.Close()

			convey.Convey("Then seeding loads the demo fixtures once", func() {
				convey.So(seedStore(ctx, cfg, store), convey.ShouldBeNil)
				convey.So(seedStore(ctx, cfg, store), convey.ShouldBeNil)
				n, err := store.Count(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 3)

				p, err := store.PendingPost(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.PriceBefore.String(), convey.ShouldEqual, "4210.25")
			})
		})

		convey.Convey("When the sqlite driver is selected", func() {
			cfg.StoreDriver = config.DriverSQLite
			cfg.StoreDSN = filepath.Join(t.TempDir(), "bullbear.db")
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer store.Close()

			convey.Convey("Then a disabled seed leaves it empty", func() {
				cfg.SeedEnabled = false
				convey.So(seedStore(ctx, cfg, store), convey.ShouldBeNil)
				n, _ := store.Count(ctx)
				convey.So(n, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a seed file is missing", func() {
			store, _ := openStore(ctx, cfg)
			defer store.Close()
			cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

			convey.So(seedStore(ctx, cfg, store), convey.ShouldNotBeNil)
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.StoreDriver = "mongo"
			_, err := openStore(ctx, cfg)
			convey.So(errors.Is(err, repository.ErrUnknownDriver), convey.ShouldBeTrue)
		})
	})
}

func TestPriceSource(t *testing.T) {
	convey.Convey("Given the configured price source", t, func() {
		cfg := config.New(context.Background())
		cfg.PriceSwing = 2.5
		src := newPriceSource(cfg)

		convey.Convey("Then a sample moves the price by the swing", func() {
			before := decimal.RequireFromString("100")
			got, err := src.Sample(context.Background(), model.Post{ID: "p", PriceBefore: before})
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Sub(before).Abs().String(), convey.ShouldEqual, "2.5")
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		convey.Convey("It ticks at the configured interval and stops with the context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx, time.Millisecond)
				close(done)
			}()
			time.Sleep(10 * time.Millisecond)
			cancel()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("updater did not stop")
			}
		})
	})
}
