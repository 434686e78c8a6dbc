package scoring

import (
	"fmt"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Result holds the updated copies produced by a scoring pass.
type Result struct {
	Post     model.Post
	Guesses  []model.Guess
	Guessers []model.Guesser // each touched guesser once, in first-seen order
	Dangling []DanglingGuesserReference
}

// Engine applies a resolved outcome to pending guesses. It is pure: inputs are
// never mutated and the same inputs always give the same Result.
type Engine struct {
	basePoints int64
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{basePoints: DefaultBasePoints}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BasePoints returns the configured points for a correct guess without streak.
func (e *Engine) BasePoints() int64 { return e.basePoints }

// Resolve classifies the closing price, assigns it to a copy of post and scores
// the pending guesses against it.
func (e *Engine) Resolve(post model.Post, priceAfter decimal.Decimal, pending []model.Guess, guessers map[string]model.Guesser) (Result, error) {
	if post.Resolved() {
		return Result{}, fmt.Errorf("post %s: %w", post.ID, ErrAlreadyResolved)
	}
	post.Resolve(priceAfter, Classify(post.PriceBefore, priceAfter))
	return e.Score(post, pending, guessers)
}

// Score marks every pending guess correct or incorrect against post.Outcome and
// updates the referenced guessers. All preconditions are checked before any
// work so a failing call returns nothing partial.
func (e *Engine) Score(post model.Post, pending []model.Guess, guessers map[string]model.Guesser) (Result, error) {
	outcome, ok := post.Outcome.Direction()
	if !ok {
		return Result{}, fmt.Errorf("post %s: %w", post.ID, ErrUnresolvedPost)
	}
	for _, g := range pending {
		if g.Correctness != model.Pending {
			return Result{}, fmt.Errorf("guess %s is %s: %w", g.ID, g.Correctness, ErrGuessNotPending)
		}
		if g.PostID != post.ID {
			return Result{}, fmt.Errorf("guess %s references %s, not %s: %w", g.ID, g.PostID, post.ID, ErrGuessPostMismatch)
		}
	}

	res := Result{
		Post:     post,
		Guesses:  make([]model.Guess, 0, len(pending)),
		Guessers: []model.Guesser{},
	}
	updated := make(map[string]int, len(pending)) // guesser id -> index in res.Guessers

	for _, g := range pending {
		correct := g.Direction == outcome
		if correct {
			g.Correctness = model.Correct
		} else {
			g.Correctness = model.Incorrect
		}
		res.Guesses = append(res.Guesses, g)

		idx, seen := updated[g.GuesserID]
		if !seen {
			u, found := guessers[g.GuesserID]
			if !found {
				res.Dangling = append(res.Dangling, DanglingGuesserReference{GuessID: g.ID, GuesserID: g.GuesserID})
				continue
			}
			res.Guessers = append(res.Guessers, u)
			idx = len(res.Guessers) - 1
			updated[g.GuesserID] = idx
		}
		e.apply(&res.Guessers[idx], correct)
	}

	return res, nil
}

// apply updates a guesser's statistics for one scored guess.
func (e *Engine) apply(u *model.Guesser, correct bool) {
	u.TotalGuesses++
	if !correct {
		u.Streak = 0
		return
	}
	u.CorrectGuesses++
	u.Score += e.basePoints * int64(u.Streak+1)
	u.Streak++
}
