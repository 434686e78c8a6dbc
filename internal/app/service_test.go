package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullbear/internal/adapters/pricefeed"
	"github.com/okian/bullbear/internal/adapters/repository"
	service "github.com/okian/bullbear/internal/app"
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

type fixture struct {
	svc    *service.Service
	store  *repository.MemoryStore
	prices *pricefeed.Fixed
}

func newFixture(opts ...service.Option) fixture {
	var seq atomic.Int64
	store := repository.NewMemoryStore(context.Background())
	prices := pricefeed.NewFixed(nil)
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithStore(store),
		service.WithPriceSource(prices),
		service.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
		service.WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return fixture{svc: svc, store: store, prices: prices}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Calls before Start fail", func() {
			_, err := svc.GetStats(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started with defaults", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Guessers, ShouldEqual, 0)
			So(stats.BasePoints, ShouldEqual, scoring.DefaultBasePoints)

			Convey("Then it stops cleanly, twice", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				_, err := svc.GetStats(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})

	Convey("Given an invalid resolution schedule", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()), service.WithResolveSchedule("whenever"))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_EnsureGuesser(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		f := newFixture()
		defer f.svc.Stop(ctx)

		Convey("A new handle creates a guesser with empty statistics", func() {
			g, created, err := f.svc.EnsureGuesser(ctx, " alice ")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(g.Handle, ShouldEqual, "@alice")
			So(g.Score, ShouldEqual, 0)

			Convey("And the same handle logs in to the same guesser", func() {
				again, created, err := f.svc.EnsureGuesser(ctx, "@alice")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(again.ID, ShouldEqual, g.ID)
			})
		})

		Convey("An empty handle is rejected", func() {
			_, _, err := f.svc.EnsureGuesser(ctx, "  @ ")
			So(errors.Is(err, service.ErrInvalidHandle), ShouldBeTrue)
		})
	})
}

func TestService_Game(t *testing.T) {
	Convey("Given two guessers and a tracked post", t, func() {
		ctx := context.Background()
		f := newFixture()
		defer f.svc.Stop(ctx)

		alice, _, err := f.svc.EnsureGuesser(ctx, "alice")
		So(err, ShouldBeNil)
		bob, _, err := f.svc.EnsureGuesser(ctx, "bob")
		So(err, ShouldBeNil)

		post, err := f.svc.TrackPost(ctx, service.PostInput{ExternalID: "tw-1", Content: "tariffs", PriceBefore: price("100")})
		So(err, ShouldBeNil)
		So(post.Resolved(), ShouldBeFalse)

		Convey("Only one post may await resolution", func() {
			_, err := f.svc.TrackPost(ctx, service.PostInput{PriceBefore: price("100")})
			So(errors.Is(err, service.ErrPendingPostExists), ShouldBeTrue)
		})

		Convey("A non-positive price is rejected", func() {
			_, err := f.svc.TrackPost(ctx, service.PostInput{PriceBefore: decimal.Zero})
			So(errors.Is(err, service.ErrInvalidPrice), ShouldBeTrue)
		})

		Convey("The current post is the tracked one", func() {
			cur, err := f.svc.CurrentPost(ctx)
			So(err, ShouldBeNil)
			So(cur.ID, ShouldEqual, post.ID)
		})

		Convey("Guess submission validates its input", func() {
			_, err := f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Direction(0))
			So(errors.Is(err, service.ErrInvalidDirection), ShouldBeTrue)

			_, err = f.svc.SubmitGuess(ctx, "nobody", post.ID, model.Up)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = f.svc.SubmitGuess(ctx, alice.ID, "nothing", model.Up)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Up)
			So(err, ShouldBeNil)
			_, err = f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Down)
			So(errors.Is(err, service.ErrDuplicateGuess), ShouldBeTrue)
		})

		Convey("When both guess and the price rises", func() {
			_, err := f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Up)
			So(err, ShouldBeNil)
			_, err = f.svc.SubmitGuess(ctx, bob.ID, post.ID, model.Down)
			So(err, ShouldBeNil)

			stats, err := f.svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.PendingPostID, ShouldEqual, post.ID)
			So(stats.PendingGuesses, ShouldEqual, 2)

			f.prices.Set(post.ID, price("100.01"))
			res, err := f.svc.ResolvePending(ctx)
			So(err, ShouldBeNil)

			Convey("Then the post resolves up and guesses are scored", func() {
				So(res.Post.Outcome, ShouldEqual, model.OutcomeUp)
				So(res.Guesses, ShouldHaveLength, 2)
				So(res.Dangling, ShouldBeEmpty)

				a, _ := f.svc.Guesser(ctx, alice.ID)
				So(a.Score, ShouldEqual, 10)
				So(a.Streak, ShouldEqual, 1)
				So(a.TotalGuesses, ShouldEqual, 1)
				So(a.CorrectGuesses, ShouldEqual, 1)

				b, _ := f.svc.Guesser(ctx, bob.ID)
				So(b.Score, ShouldEqual, 0)
				So(b.Streak, ShouldEqual, 0)
				So(b.TotalGuesses, ShouldEqual, 1)
			})

			Convey("Then the post is closed", func() {
				_, err := f.svc.CurrentPost(ctx)
				So(errors.Is(err, service.ErrNoPendingPost), ShouldBeTrue)

				_, err = f.svc.ResolvePending(ctx)
				So(errors.Is(err, service.ErrNoPendingPost), ShouldBeTrue)

				latest, err := f.svc.LatestPost(ctx)
				So(err, ShouldBeNil)
				So(latest.PriceAfter.String(), ShouldEqual, "100.01")

				carol, _, _ := f.svc.EnsureGuesser(ctx, "carol")
				_, err = f.svc.SubmitGuess(ctx, carol.ID, post.ID, model.Up)
				So(errors.Is(err, service.ErrPostClosed), ShouldBeTrue)
			})

			Convey("Then resolving again changes nothing", func() {
				_, err := f.svc.ResolvePost(ctx, post.ID, price("50"))
				So(errors.Is(err, scoring.ErrAlreadyResolved), ShouldBeTrue)

				a, _ := f.svc.Guesser(ctx, alice.ID)
				So(a.Score, ShouldEqual, 10)
				p, _ := f.store.Post(ctx, post.ID)
				So(p.PriceAfter.String(), ShouldEqual, "100.01")
			})

			Convey("Then the leaderboard and profile reflect the result", func() {
				top, err := f.svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				So(top[0].GuesserID, ShouldEqual, alice.ID)
				So(top[0].Rank, ShouldEqual, 1)
				So(top[1].Rank, ShouldEqual, 2)

				rank, err := f.svc.Rank(ctx, bob.ID)
				So(err, ShouldBeNil)
				So(rank.Rank, ShouldEqual, 2)

				prof, err := f.svc.Profile(ctx, alice.ID)
				So(err, ShouldBeNil)
				So(prof.Rank, ShouldEqual, 1)
				So(prof.Accuracy, ShouldEqual, 100)
				So(prof.Guesses, ShouldHaveLength, 1)
				So(prof.Guesses[0].Correctness, ShouldEqual, model.Correct)
			})

			Convey("Then a second post continues the streak", func() {
				next, err := f.svc.TrackPost(ctx, service.PostInput{PriceBefore: price("100.01")})
				So(err, ShouldBeNil)
				_, err = f.svc.SubmitGuess(ctx, alice.ID, next.ID, model.Up)
				So(err, ShouldBeNil)

				_, err = f.svc.ResolvePost(ctx, next.ID, price("120"))
				So(err, ShouldBeNil)

				a, _ := f.svc.Guesser(ctx, alice.ID)
				So(a.Score, ShouldEqual, 30)
				So(a.Streak, ShouldEqual, 2)
			})
		})

		Convey("When the price is unchanged", func() {
			_, err := f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Up)
			So(err, ShouldBeNil)
			res, err := f.svc.ResolvePost(ctx, post.ID, price("100"))
			So(err, ShouldBeNil)

			Convey("Then the outcome is down", func() {
				So(res.Post.Outcome, ShouldEqual, model.OutcomeDown)
				So(res.Guesses[0].Correctness, ShouldEqual, model.Incorrect)
			})
		})

		Convey("When the price source has nothing for the post", func() {
			_, err := f.svc.ResolvePending(ctx)

			Convey("Then the post stays pending", func() {
				So(errors.Is(err, pricefeed.ErrNoPrice), ShouldBeTrue)
				cur, err := f.svc.CurrentPost(ctx)
				So(err, ShouldBeNil)
				So(cur.ID, ShouldEqual, post.ID)
			})
		})

		Convey("When a guess references a guesser that does not exist", func() {
			So(f.store.CreateGuess(ctx, model.Guess{ID: "ghost-guess", GuesserID: "ghost", PostID: post.ID, Direction: model.Up}), ShouldBeNil)
			_, err := f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Up)
			So(err, ShouldBeNil)

			res, err := f.svc.ResolvePost(ctx, post.ID, price("110"))

			Convey("Then resolution still succeeds and reports it", func() {
				So(err, ShouldBeNil)
				So(res.Dangling, ShouldHaveLength, 1)
				So(res.Dangling[0].GuesserID, ShouldEqual, "ghost")
				So(res.Guessers, ShouldHaveLength, 1)

				guesses, _ := f.store.GuessesForPost(ctx, post.ID)
				for _, g := range guesses {
					So(g.Correctness, ShouldEqual, model.Correct)
				}
			})
		})

		Convey("When two resolutions race", func() {
			_, err := f.svc.SubmitGuess(ctx, alice.ID, post.ID, model.Up)
			So(err, ShouldBeNil)

			var (
				wg        sync.WaitGroup
				ok, again atomic.Int32
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.svc.ResolvePost(ctx, post.ID, price("150"))
					switch {
					case err == nil:
						ok.Add(1)
					case errors.Is(err, scoring.ErrAlreadyResolved):
						again.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one applies", func() {
				So(ok.Load(), ShouldEqual, 1)
				So(again.Load(), ShouldEqual, 1)
				a, _ := f.svc.Guesser(ctx, alice.ID)
				So(a.Score, ShouldEqual, 10)
				So(a.TotalGuesses, ShouldEqual, 1)
			})
		})
	})
}

func TestService_TopNLimit(t *testing.T) {
	Convey("Given a service with a small leaderboard cap", t, func() {
		ctx := context.Background()
		f := newFixture(service.WithMaxLeaderboardLimit(2), service.WithBasePoints(5))
		defer f.svc.Stop(ctx)

		for _, h := range []string{"a", "b", "c"} {
			_, _, err := f.svc.EnsureGuesser(ctx, h)
			So(err, ShouldBeNil)
		}

		Convey("Then large limits are capped", func() {
			top, err := f.svc.TopN(ctx, 1000)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
		})

		Convey("Then non-positive limits are rejected", func() {
			_, err := f.svc.TopN(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then stats report the configured base points", func() {
			stats, err := f.svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.BasePoints, ShouldEqual, 5)
			So(stats.Guessers, ShouldEqual, 3)
		})
	})
}

func TestService_ScheduledResolution(t *testing.T) {
	Convey("Given a service resolving every second", t, func() {
		ctx := context.Background()
		f := newFixture(service.WithResolveSchedule("@every 1s"))
		defer f.svc.Stop(ctx)

		post, err := f.svc.TrackPost(ctx, service.PostInput{PriceBefore: price("4210.25")})
		So(err, ShouldBeNil)
		f.prices.Set(post.ID, price("4195.25"))

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if p, _ := f.store.Post(ctx, post.ID); p.Resolved() {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		Convey("Then the pending post gets resolved by the job", func() {
			p, err := f.store.Post(ctx, post.ID)
			So(err, ShouldBeNil)
			So(p.Outcome, ShouldEqual, model.OutcomeDown)
		})
	})
}

func TestService_SimulatedLowPrice(t *testing.T) {
	Convey("Given a simulated source with a swing above the opening price", t, func() {
		ctx := context.Background()
		f := newFixture(service.WithPriceSource(pricefeed.NewSimulated(pricefeed.WithSeed(3))))
		defer f.svc.Stop(ctx)

		Convey("Every pending resolution lands on a positive price", func() {
			for i := 0; i < 20; i++ {
				_, err := f.svc.TrackPost(ctx, service.PostInput{Content: "low", PriceBefore: price("5")})
				So(err, ShouldBeNil)

				res, err := f.svc.ResolvePending(ctx)
				So(err, ShouldBeNil)
				So(res.Post.PriceAfter.Equal(price("20")), ShouldBeTrue)
				So(res.Post.Outcome, ShouldEqual, model.OutcomeUp)
			}
		})
	})
}
