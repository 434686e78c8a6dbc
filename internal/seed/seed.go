// Package seed loads demo fixtures into an empty store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/okian/bullbear/internal/adapters/repository"
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/pkg/logger"
)

//go:embed fixtures.yaml
var embedded []byte

// Fixtures is the on-disk fixture document.
type Fixtures struct {
	Posts    []PostFixture    `yaml:"posts" validate:"dive"`
	Guessers []GuesserFixture `yaml:"guessers" validate:"dive"`
	Guesses  []GuessFixture   `yaml:"guesses" validate:"dive"`
}

// PostFixture describes a post. Outcome and PriceAfter go together.
type PostFixture struct {
	ID           string        `yaml:"id" validate:"required"`
	ExternalID   string        `yaml:"external_id" validate:"required"`
	Content      string        `yaml:"content"`
	PublishedAgo time.Duration `yaml:"published_ago" validate:"gte=0"`
	PriceBefore  string        `yaml:"price_before" validate:"required,numeric"`
	PriceAfter   string        `yaml:"price_after" validate:"omitempty,numeric"`
	Outcome      string        `yaml:"outcome" validate:"omitempty,oneof=up down bull bear"`
}

// GuesserFixture describes a guesser with pre-existing statistics.
type GuesserFixture struct {
	ID             string        `yaml:"id" validate:"required"`
	Handle         string        `yaml:"handle" validate:"required"`
	Score          int64         `yaml:"score" validate:"gte=0"`
	Streak         int           `yaml:"streak" validate:"gte=0"`
	TotalGuesses   int           `yaml:"total_guesses" validate:"gte=0"`
	CorrectGuesses int           `yaml:"correct_guesses" validate:"gte=0,ltefield=TotalGuesses"`
	CreatedAgo     time.Duration `yaml:"created_ago" validate:"gte=0"`
}

// GuessFixture describes a guess.
type GuessFixture struct {
	ID          string        `yaml:"id" validate:"required"`
	GuesserID   string        `yaml:"guesser_id" validate:"required"`
	PostID      string        `yaml:"post_id" validate:"required"`
	Direction   string        `yaml:"direction" validate:"required,oneof=up down bull bear"`
	Correctness string        `yaml:"correctness" default:"pending" validate:"oneof=pending correct incorrect"`
	CreatedAgo  time.Duration `yaml:"created_ago" validate:"gte=0"`
}

// Summary reports what Apply inserted.
type Summary struct {
	Skipped  bool
	Posts    int
	Guessers int
	Guesses  int
}

var validate = validator.New()

// Default returns the embedded demo fixtures.
func Default() (Fixtures, error) {
	return Parse(embedded)
}

// LoadFile reads fixtures from path.
func LoadFile(path string) (Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(b)
}

// Parse decodes, defaults and validates a fixture document.
func Parse(b []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixtures{}, fmt.Errorf("%w: parse: %v", ErrInvalidFixtures, err)
	}
	for i := range f.Guesses {
		if err := defaults.Set(&f.Guesses[i]); err != nil {
			return Fixtures{}, fmt.Errorf("%w: defaults: %v", ErrInvalidFixtures, err)
		}
	}
	if err := validate.Struct(f); err != nil {
		return Fixtures{}, fmt.Errorf("%w: %v", ErrInvalidFixtures, err)
	}
	return f, nil
}

// Apply inserts f into store unless the store already has guessers.
func Apply(ctx context.Context, store repository.Store, f Fixtures, now time.Time) (Summary, error) {
	log := logger.Get().Named("seed")

	n, err := store.Count(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count guessers: %w", err)
	}
	if n > 0 {
		log.Info(ctx, "store not empty, skipping fixtures", logger.Int("guessers", n))
		return Summary{Skipped: true}, nil
	}

	var sum Summary
	for _, gf := range f.Guessers {
		g := model.Guesser{
			ID:             gf.ID,
			Handle:         gf.Handle,
			Score:          gf.Score,
			Streak:         gf.Streak,
			TotalGuesses:   gf.TotalGuesses,
			CorrectGuesses: gf.CorrectGuesses,
			CreatedAt:      now.Add(-gf.CreatedAgo),
		}
		if err := store.CreateGuesser(ctx, g); err != nil {
			return sum, fmt.Errorf("seed guesser %s: %w", gf.ID, err)
		}
		sum.Guessers++
	}

	for i, pf := range f.Posts {
		p, err := pf.post(now, i)
		if err != nil {
			return sum, err
		}
		if err := store.CreatePost(ctx, p); err != nil {
			return sum, fmt.Errorf("seed post %s: %w", pf.ID, err)
		}
		sum.Posts++
	}

	for _, gf := range f.Guesses {
		g, err := gf.guess(now)
		if err != nil {
			return sum, err
		}
		if err := store.CreateGuess(ctx, g); err != nil {
			return sum, fmt.Errorf("seed guess %s: %w", gf.ID, err)
		}
		sum.Guesses++
	}

	log.Info(ctx, "fixtures loaded",
		logger.Int("guessers", sum.Guessers),
		logger.Int("posts", sum.Posts),
		logger.Int("guesses", sum.Guesses),
	)
	return sum, nil
}

func (pf PostFixture) post(now time.Time, order int) (model.Post, error) {
	before, err := decimal.NewFromString(pf.PriceBefore)
	if err != nil {
		return model.Post{}, fmt.Errorf("%w: post %s price_before: %v", ErrInvalidFixtures, pf.ID, err)
	}
	published := now.Add(-pf.PublishedAgo)
	p := model.Post{
		ID:          pf.ID,
		ExternalID:  pf.ExternalID,
		Content:     pf.Content,
		PublishedAt: published,
		PriceBefore: before,
		// keep creation order stable when publish times collide
		CreatedAt: published.Add(time.Duration(order) * time.Millisecond),
	}
	if (pf.Outcome == "") != (pf.PriceAfter == "") {
		return model.Post{}, fmt.Errorf("%w: post %s: outcome and price_after go together", ErrInvalidFixtures, pf.ID)
	}
	if pf.Outcome == "" {
		return p, nil
	}
	after, err := decimal.NewFromString(pf.PriceAfter)
	if err != nil {
		return model.Post{}, fmt.Errorf("%w: post %s price_after: %v", ErrInvalidFixtures, pf.ID, err)
	}
	dir, err := model.ParseDirection(pf.Outcome)
	if err != nil {
		return model.Post{}, fmt.Errorf("%w: post %s: %v", ErrInvalidFixtures, pf.ID, err)
	}
	p.Resolve(after, dir)
	return p, nil
}

func (gf GuessFixture) guess(now time.Time) (model.Guess, error) {
	dir, err := model.ParseDirection(gf.Direction)
	if err != nil {
		return model.Guess{}, fmt.Errorf("%w: guess %s: %v", ErrInvalidFixtures, gf.ID, err)
	}
	correctness, err := model.ParseCorrectness(gf.Correctness)
	if err != nil {
		return model.Guess{}, fmt.Errorf("%w: guess %s: %v", ErrInvalidFixtures, gf.ID, err)
	}
	return model.Guess{
		ID:          gf.ID,
		GuesserID:   gf.GuesserID,
		PostID:      gf.PostID,
		Direction:   dir,
		Correctness: correctness,
		CreatedAt:   now.Add(-gf.CreatedAgo),
	}, nil
}
