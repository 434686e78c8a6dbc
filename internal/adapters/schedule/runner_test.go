package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullbear/internal/adapters/schedule"
	logging "github.com/okian/bullbear/pkg/logger"
)

func init() {
	_ = logging.Init()
}

func TestValidate(t *testing.T) {
	convey.Convey("Given schedule expressions", t, func() {
		convey.Convey("The default resolution schedule is valid", func() {
			convey.So(schedule.Validate("*/5 * * * *"), convey.ShouldBeNil)
		})
		convey.Convey("Descriptors are valid", func() {
			convey.So(schedule.Validate("@every 1m"), convey.ShouldBeNil)
			convey.So(schedule.Validate("@hourly"), convey.ShouldBeNil)
		})
		convey.Convey("Garbage is rejected", func() {
			err := schedule.Validate("every five minutes")
			convey.So(errors.Is(err, schedule.ErrInvalidSchedule), convey.ShouldBeTrue)
		})
	})
}

func TestRunner(t *testing.T) {
	convey.Convey("Given a runner with a job every second", t, func() {
		r := schedule.New(schedule.WithName("test"), schedule.WithLogger(logging.Nop()), schedule.WithJobTimeout(time.Second))

		var runs atomic.Int32
		err := r.Add("tick", "@every 1s", func(ctx context.Context) error {
			runs.Add(1)
			return nil
		})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When started", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			r.Start(ctx)

			deadline := time.Now().Add(3 * time.Second)
			for runs.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}

			convey.Convey("Then the job fires and shutdown completes", func() {
				convey.So(runs.Load(), convey.ShouldBeGreaterThan, 0)
				stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
				defer stop()
				convey.So(r.Shutdown(stopCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an invalid schedule", t, func() {
		r := schedule.New(schedule.WithLogger(logging.Nop()))
		err := r.Add("bad", "61 * * * *", func(context.Context) error { return nil })

		convey.Convey("Then Add fails", func() {
			convey.So(errors.Is(err, schedule.ErrInvalidSchedule), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a job that fails and one that panics", t, func() {
		r := schedule.New(schedule.WithLogger(logging.Nop()), schedule.WithSeconds())
		var failed, panicked atomic.Bool
		convey.So(r.Add("fail", "* * * * * *", func(context.Context) error {
			failed.Store(true)
			return errors.New("boom")
		}), convey.ShouldBeNil)
		convey.So(r.Add("panic", "* * * * * *", func(context.Context) error {
			panicked.Store(true)
			panic("boom")
		}), convey.ShouldBeNil)

		r.Start(context.Background())
		deadline := time.Now().Add(3 * time.Second)
		for !(failed.Load() && panicked.Load()) && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}

		convey.Convey("Then the runner survives both", func() {
			convey.So(failed.Load(), convey.ShouldBeTrue)
			convey.So(panicked.Load(), convey.ShouldBeTrue)
			convey.So(r.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
