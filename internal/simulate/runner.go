// Package simulate drives a running bull or bear service through complete
// game rounds over HTTP and verifies the resulting leaderboard.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/pkg/logger"
)

// percentageMultiplier converts ratios to percentages.
const percentageMultiplier = 100

type runner struct {
	cfg    *Config
	client *Client
	engine *scoring.Engine
	rng    *rand.Rand
	stats  *Stats
	log    logger.Logger

	guessers []model.Guesser
	// expected holds the statistics the server should report, per guesser id.
	expected map[string]model.Guesser
}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	cfg = cfg.withDefaults()
	r := &runner{
		cfg:      cfg,
		client:   NewClient(cfg.BaseURL, cfg.Timeout),
		rng:      rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // simulation only
		stats:    &Stats{StartTime: time.Now()},
		log:      logger.Get().Named("simulate"),
		expected: make(map[string]model.Guesser, cfg.Guessers),
	}

	r.log.Info(ctx, "starting bull or bear simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("guessers", cfg.Guessers),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
	)

	// Step 1: Check service health and scoring configuration
	if err := r.client.Health(ctx); err != nil {
		return r.stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	svcStats, err := r.client.Stats(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("fetch stats: %w", err)
	}
	r.engine = scoring.NewEngine(scoring.WithBasePoints(svcStats.BasePoints))

	// Step 2: Register guessers concurrently
	if err := r.registerGuessers(ctx); err != nil {
		return r.stats, fmt.Errorf("guesser registration failed: %w", err)
	}

	// Step 3: Play rounds
	for round := 0; round < cfg.Rounds; round++ {
		if err := r.playRound(ctx, round); err != nil {
			return r.stats, fmt.Errorf("round %d failed: %w", round+1, err)
		}
		r.stats.Rounds++
	}

	// Step 4: Verify results
	if err := r.verify(ctx); err != nil {
		return r.stats, err
	}

	r.stats.Retries = r.client.Retries()
	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.displayFinalStats(ctx)

	r.log.Info(ctx, "simulation completed successfully")
	return r.stats, nil
}

// forEach runs fn for 0..n-1 on workers goroutines and returns the first error.
func forEach(ctx context.Context, workers, n int, fn func(i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexes := make(chan int, workers*2)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for w := 0; w < min(workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					continue
				}
				if err := fn(i); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
		case indexes <- i:
			continue
		}
		break
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (r *runner) registerGuessers(ctx context.Context) error {
	runID := uuid.NewString()[:8]
	r.guessers = make([]model.Guesser, r.cfg.Guessers)
	err := forEach(ctx, r.cfg.Workers, r.cfg.Guessers, func(i int) error {
		g, err := r.client.RegisterGuesser(ctx, fmt.Sprintf("@sim-%s-%03d", runID, i))
		if err != nil {
			return err
		}
		r.guessers[i] = g
		return nil
	})
	if err != nil {
		return err
	}
	for _, g := range r.guessers {
		r.expected[g.ID] = g
	}
	r.stats.GuessersRegistered = len(r.guessers)
	r.log.Info(ctx, "guessers registered", logger.Int("count", len(r.guessers)), logger.String("runID", runID))
	return nil
}

// currentPost returns the pending post, tracking a new one when there is none.
func (r *runner) currentPost(ctx context.Context, round int) (model.Post, error) {
	p, err := r.client.CurrentPost(ctx)
	if err == nil || !IsStatus(err, http.StatusNotFound) {
		return p, err
	}

	price := defaultStartPrice
	latest, err := r.client.LatestPost(ctx)
	switch {
	case err == nil && latest.Resolved():
		price = latest.PriceAfter
	case err != nil && !IsStatus(err, http.StatusNotFound):
		return model.Post{}, err
	}

	p, err = r.client.TrackPost(ctx, fmt.Sprintf("simulated post %d", round+1), price)
	if IsStatus(err, http.StatusConflict) {
		return r.client.CurrentPost(ctx)
	}
	return p, err
}

func (r *runner) nextPrice(before decimal.Decimal) decimal.Decimal {
	if r.rng.Intn(2) == 0 {
		return before.Add(r.cfg.Swing)
	}
	if after := before.Sub(r.cfg.Swing); after.IsPositive() {
		return after
	}
	return before.Add(r.cfg.Swing)
}

func (r *runner) playRound(ctx context.Context, round int) error {
	post, err := r.currentPost(ctx, round)
	if err != nil {
		return fmt.Errorf("current post: %w", err)
	}

	dirs := make([]model.Direction, len(r.guessers))
	for i := range dirs {
		dirs[i] = model.Up
		if r.rng.Intn(2) == 1 {
			dirs[i] = model.Down
		}
	}

	placed := make([]*model.Guess, len(r.guessers))
	var rejected atomic.Int64
	err = forEach(ctx, r.cfg.Workers, len(r.guessers), func(i int) error {
		g, err := r.client.SubmitGuess(ctx, r.guessers[i].ID, post.ID, dirs[i])
		switch {
		case err == nil:
			placed[i] = &g
		case IsStatus(err, http.StatusConflict), IsStatus(err, http.StatusTooManyRequests):
			rejected.Add(1)
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("submit guesses: %w", err)
	}

	pending := make([]model.Guess, 0, len(placed))
	for _, g := range placed {
		if g != nil {
			pending = append(pending, *g)
		}
	}
	r.stats.GuessesSubmitted += len(pending)
	r.stats.GuessesRejected += int(rejected.Load())

	price := r.nextPrice(post.PriceBefore)
	res, err := r.client.ResolvePost(ctx, post.ID, price)
	if err != nil {
		return fmt.Errorf("resolve post %s: %w", post.ID, err)
	}

	want, err := r.engine.Score(res.Post, pending, r.expected)
	if err != nil {
		return fmt.Errorf("score locally: %w", err)
	}
	for _, g := range want.Guessers {
		r.expected[g.ID] = g
	}
	correct := 0
	for _, g := range want.Guesses {
		if g.Correctness == model.Correct {
			correct++
		}
	}
	r.stats.GuessesCorrect += correct

	if r.cfg.Verbose {
		r.log.Info(ctx, "round resolved",
			logger.Int("round", round+1),
			logger.String("postID", post.ID),
			logger.String("priceBefore", post.PriceBefore.String()),
			logger.String("priceAfter", res.Post.PriceAfter.String()),
			logger.String("outcome", res.Post.Outcome.String()),
			logger.Int("guesses", len(pending)),
			logger.Int("correct", correct),
		)
	}
	return nil
}

func (r *runner) verify(ctx context.Context) error {
	r.log.Info(ctx, "verifying results")

	board, err := r.client.Leaderboard(ctx, r.cfg.TopN)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	r.stats.LeaderboardEntries = len(board)
	if err := verifyLeaderboard(board); err != nil {
		return err
	}

	var errs []error
	for _, g := range r.guessers {
		got, err := r.client.Rank(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("rank of %s: %w", g.Handle, err)
		}
		if err := verifyGuesser(r.expected[g.ID], got); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.log.Info(ctx, "result verification completed")
	return nil
}

// displayFinalStats logs the final run statistics.
func (r *runner) displayFinalStats(ctx context.Context) {
	var accuracy float64
	if r.stats.GuessesSubmitted > 0 {
		accuracy = float64(r.stats.GuessesCorrect) / float64(r.stats.GuessesSubmitted) * percentageMultiplier
	}

	r.log.Info(ctx, "final statistics",
		logger.Int("guessersRegistered", r.stats.GuessersRegistered),
		logger.Int("rounds", r.stats.Rounds),
		logger.Int("guessesSubmitted", r.stats.GuessesSubmitted),
		logger.Int("guessesRejected", r.stats.GuessesRejected),
		logger.Int("guessesCorrect", r.stats.GuessesCorrect),
		logger.Any("retries", r.stats.Retries),
		logger.Int("leaderboardEntries", r.stats.LeaderboardEntries),
		logger.String("duration", r.stats.Duration.String()),
		logger.Float64("accuracy", accuracy))
}
