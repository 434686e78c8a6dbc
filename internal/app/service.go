// Package service provides the core business service that implements
// the dependencies required by the HTTP API and runs scheduled resolution.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/adapters/pricefeed"
	"github.com/okian/bullbear/internal/adapters/repository"
	"github.com/okian/bullbear/internal/adapters/schedule"
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/internal/domain/types"
	"github.com/okian/bullbear/pkg/logger"
	"github.com/okian/bullbear/pkg/metrics"
)

// Default service configuration constants.
const (
	DefaultMaxLeaderboardLimit = 100
	resolveJobName             = "resolve_pending"
)

// PostInput describes a post to start tracking.
type PostInput struct {
	ExternalID  string
	Content     string
	PublishedAt time.Time
	PriceBefore decimal.Decimal
}

// Service implements the API dependencies for the prediction game.
type Service struct {
	mu sync.RWMutex

	// resolveMu lets guesses be submitted concurrently but never while a
	// post is being tracked or resolved.
	resolveMu sync.RWMutex

	// Core components
	store     repository.Store
	prices    pricefeed.Source
	engine    *scoring.Engine
	scheduler *schedule.Runner

	// Configuration
	resolveSchedule string
	maxLimit        int
	now             func() time.Time
	newID           func() string

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engine:   scoring.NewEngine(),
		maxLimit: DefaultMaxLeaderboardLimit,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes missing components and starts the resolution schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using memory store")
	}
	if s.prices == nil {
		s.prices = pricefeed.NewSimulated()
		s.logger.Info(ctx, "using simulated price source")
	}

	if s.resolveSchedule != "" {
		s.scheduler = schedule.New(schedule.WithName("resolver"), schedule.WithLogger(s.logger))
		if err := s.scheduler.Add(resolveJobName, s.resolveSchedule, s.resolveJob); err != nil {
			s.scheduler = nil
			return fmt.Errorf("resolution schedule: %w", err)
		}
		s.scheduler.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "bull or bear service started",
		logger.String("resolveSchedule", s.resolveSchedule),
		logger.Any("basePoints", s.engine.BasePoints()),
		logger.Int("maxLeaderboardLimit", s.maxLimit),
	)

	return nil
}

// Stop shuts down the schedule, waiting for a running resolution, then
// closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping bull or bear service...")

	var errs []error
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.scheduler = nil
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "bull or bear service stopped")

	return errors.Join(errs...)
}

// deps returns the store after checking the service is running.
func (s *Service) deps() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) resolveJob(ctx context.Context) error {
	_, err := s.ResolvePending(ctx)
	if errors.Is(err, ErrNoPendingPost) {
		s.logger.Debug(ctx, "no pending post to resolve")
		return nil
	}
	return err
}

// normalizeHandle trims whitespace and ensures the leading "@".
func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" || handle == "@" {
		return ""
	}
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	return handle
}

// EnsureGuesser returns the guesser with handle, creating a fresh one on
// first sight. created reports whether a new guesser was made.
func (s *Service) EnsureGuesser(ctx context.Context, handle string) (g model.Guesser, created bool, err error) {
	store, err := s.deps()
	if err != nil {
		return model.Guesser{}, false, err
	}
	handle = normalizeHandle(handle)
	if handle == "" {
		return model.Guesser{}, false, ErrInvalidHandle
	}

	g, err = store.GuesserByHandle(ctx, handle)
	if err == nil {
		return g, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Guesser{}, false, err
	}

	g = model.Guesser{ID: s.newID(), Handle: handle, CreatedAt: s.now()}
	if err := store.CreateGuesser(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost a race with another login for the same handle
			g, err = store.GuesserByHandle(ctx, handle)
			return g, false, err
		}
		return model.Guesser{}, false, err
	}

	s.logger.Info(ctx, "guesser created", logger.String("guesserID", g.ID), logger.String("handle", handle))
	return g, true, nil
}

// Guesser returns a guesser by id.
func (s *Service) Guesser(ctx context.Context, id string) (model.Guesser, error) {
	store, err := s.deps()
	if err != nil {
		return model.Guesser{}, err
	}
	return store.Guesser(ctx, id)
}

// Profile returns a guesser with their rank, accuracy and guess history.
func (s *Service) Profile(ctx context.Context, id string) (types.Profile, error) {
	store, err := s.deps()
	if err != nil {
		return types.Profile{}, err
	}
	entry, err := store.Rank(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	g, err := store.Guesser(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	guesses, err := store.GuessesByGuesser(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	return types.Profile{
		Guesser:  g,
		Rank:     entry.Rank,
		Accuracy: g.Accuracy(),
		Guesses:  guesses,
	}, nil
}

// CurrentPost returns the post awaiting resolution.
func (s *Service) CurrentPost(ctx context.Context) (model.Post, error) {
	store, err := s.deps()
	if err != nil {
		return model.Post{}, err
	}
	p, err := store.PendingPost(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Post{}, ErrNoPendingPost
	}
	return p, err
}

// LatestPost returns the most recently published post, resolved or not.
func (s *Service) LatestPost(ctx context.Context) (model.Post, error) {
	store, err := s.deps()
	if err != nil {
		return model.Post{}, err
	}
	return store.LatestPost(ctx)
}

// TrackPost opens a new post for guesses. Only one post may await
// resolution at a time.
func (s *Service) TrackPost(ctx context.Context, in PostInput) (model.Post, error) {
	store, err := s.deps()
	if err != nil {
		return model.Post{}, err
	}
	if !in.PriceBefore.IsPositive() {
		return model.Post{}, fmt.Errorf("price before %s: %w", in.PriceBefore, ErrInvalidPrice)
	}

	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	pending, err := store.PendingPost(ctx)
	switch {
	case err == nil:
		return model.Post{}, fmt.Errorf("post %s: %w", pending.ID, ErrPendingPostExists)
	case !errors.Is(err, repository.ErrNotFound):
		return model.Post{}, err
	}

	p := model.Post{
		ID:          s.newID(),
		ExternalID:  in.ExternalID,
		Content:     in.Content,
		PublishedAt: in.PublishedAt.UTC(),
		PriceBefore: in.PriceBefore,
		CreatedAt:   s.now(),
	}
	if p.ExternalID == "" {
		p.ExternalID = p.ID
	}
	if err := store.CreatePost(ctx, p); err != nil {
		return model.Post{}, err
	}

	metrics.RecordPostTracked()
	s.logger.Info(ctx, "post tracked",
		logger.String("postID", p.ID),
		logger.String("externalID", p.ExternalID),
		logger.String("priceBefore", p.PriceBefore.String()),
	)
	return p, nil
}

// SubmitGuess records a guesser's prediction on an open post.
func (s *Service) SubmitGuess(ctx context.Context, guesserID, postID string, d model.Direction) (model.Guess, error) {
	store, err := s.deps()
	if err != nil {
		return model.Guess{}, err
	}
	if !d.Valid() {
		return model.Guess{}, ErrInvalidDirection
	}

	s.resolveMu.RLock()
	defer s.resolveMu.RUnlock()

	if _, err := store.Guesser(ctx, guesserID); err != nil {
		return model.Guess{}, err
	}
	p, err := store.Post(ctx, postID)
	if err != nil {
		return model.Guess{}, err
	}
	if p.Resolved() {
		return model.Guess{}, fmt.Errorf("post %s: %w", postID, ErrPostClosed)
	}

	g := model.Guess{
		ID:          s.newID(),
		GuesserID:   guesserID,
		PostID:      postID,
		Direction:   d,
		Correctness: model.Pending,
		CreatedAt:   s.now(),
	}
	if err := store.CreateGuess(ctx, g); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Guess{}, fmt.Errorf("guesser %s on post %s: %w", guesserID, postID, ErrDuplicateGuess)
		}
		return model.Guess{}, err
	}

	metrics.RecordGuessSubmitted()
	s.logger.Debug(ctx, "guess submitted",
		logger.String("guessID", g.ID),
		logger.String("guesserID", guesserID),
		logger.String("postID", postID),
		logger.String("direction", d.String()),
	)
	return g, nil
}

// ResolvePending samples a closing price for the pending post and resolves it.
// The price is sampled before resolution is locked so guesses keep flowing
// while the price source retries.
func (s *Service) ResolvePending(ctx context.Context) (scoring.Result, error) {
	s.mu.RLock()
	prices := s.prices
	s.mu.RUnlock()

	p, err := s.CurrentPost(ctx)
	if err != nil {
		return scoring.Result{}, err
	}
	price, err := prices.Sample(ctx, p)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("sample price for post %s: %w", p.ID, err)
	}
	return s.ResolvePost(ctx, p.ID, price)
}

// ResolvePost resolves a post with the given closing price, scores its
// pending guesses and persists everything as one unit.
func (s *Service) ResolvePost(ctx context.Context, postID string, priceAfter decimal.Decimal) (scoring.Result, error) {
	store, err := s.deps()
	if err != nil {
		return scoring.Result{}, err
	}
	if !priceAfter.IsPositive() {
		return scoring.Result{}, fmt.Errorf("price after %s: %w", priceAfter, ErrInvalidPrice)
	}

	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	start := time.Now()

	p, err := store.Post(ctx, postID)
	if err != nil {
		return scoring.Result{}, err
	}
	all, err := store.GuessesForPost(ctx, postID)
	if err != nil {
		return scoring.Result{}, err
	}
	pending := make([]model.Guess, 0, len(all))
	ids := make([]string, 0, len(all))
	for _, g := range all {
		if g.Correctness == model.Pending {
			pending = append(pending, g)
			ids = append(ids, g.GuesserID)
		}
	}
	guessers, err := store.GuessersByID(ctx, ids)
	if err != nil {
		return scoring.Result{}, err
	}

	res, err := s.engine.Resolve(p, priceAfter, pending, guessers)
	if err != nil {
		if errors.Is(err, scoring.ErrAlreadyResolved) {
			metrics.RecordResolutionConflict()
		}
		return scoring.Result{}, err
	}
	for _, d := range res.Dangling {
		metrics.RecordDanglingReference()
		s.logger.Warn(ctx, "guess references unknown guesser",
			logger.String("guessID", d.GuessID),
			logger.String("guesserID", d.GuesserID),
			logger.String("postID", postID),
		)
	}

	if err := store.PersistResolution(ctx, res.Post, res.Guesses, res.Guessers); err != nil {
		if errors.Is(err, scoring.ErrAlreadyResolved) {
			metrics.RecordResolutionConflict()
		}
		return scoring.Result{}, fmt.Errorf("persist resolution of post %s: %w", postID, err)
	}

	correct := 0
	for _, g := range res.Guesses {
		ok := g.Correctness == model.Correct
		if ok {
			correct++
		}
		metrics.RecordGuessScored(ok)
	}
	for _, u := range res.Guessers {
		metrics.RecordPointsAwarded(u.Score - guessers[u.ID].Score)
	}
	metrics.RecordResolution(float64(time.Since(start).Microseconds()) / 1000)

	s.logger.Info(ctx, "post resolved",
		logger.String("postID", postID),
		logger.String("priceBefore", res.Post.PriceBefore.String()),
		logger.String("priceAfter", res.Post.PriceAfter.String()),
		logger.String("outcome", res.Post.Outcome.String()),
		logger.Int("guesses", len(res.Guesses)),
		logger.Int("correct", correct),
		logger.Int("dangling", len(res.Dangling)),
	)
	return res, nil
}

// TopN returns the top N leaderboard entries, capped at the configured maximum.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	store, err := s.deps()
	if err != nil {
		return nil, err
	}
	if n > s.maxLimit {
		n = s.maxLimit
	}
	return store.TopN(ctx, n)
}

// Rank returns the leaderboard entry for a guesser.
func (s *Service) Rank(ctx context.Context, guesserID string) (types.Entry, error) {
	store, err := s.deps()
	if err != nil {
		return types.Entry{}, err
	}
	return store.Rank(ctx, guesserID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (types.Stats, error) {
	store, err := s.deps()
	if err != nil {
		return types.Stats{}, err
	}

	stats := types.Stats{BasePoints: s.engine.BasePoints()}
	if stats.Guessers, err = store.Count(ctx); err != nil {
		return types.Stats{}, err
	}
	metrics.UpdateTotalGuessers(stats.Guessers)

	p, err := store.PendingPost(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return stats, nil
	case err != nil:
		return types.Stats{}, err
	}
	stats.PendingPostID = p.ID
	guesses, err := store.GuessesForPost(ctx, p.ID)
	if err != nil {
		return types.Stats{}, err
	}
	for _, g := range guesses {
		if g.Correctness == model.Pending {
			stats.PendingGuesses++
		}
	}
	return stats, nil
}
