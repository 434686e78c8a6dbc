// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Post is a social-media post whose market reaction guessers predict.
type Post struct {
	ID string `json:"id"`
	// ExternalID is the id of the message on the source network.
	ExternalID string `json:"external_id"`
	// Content and PublishedAt stay empty until the post is published.
	Content     string          `json:"content,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
	PriceBefore decimal.Decimal `json:"price_before"`
	// PriceAfter is meaningful only once the post is resolved.
	PriceAfter decimal.Decimal `json:"price_after"`
	Outcome    Outcome         `json:"outcome"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MarshalJSON encodes price_after as null while the post is unresolved.
func (p Post) MarshalJSON() ([]byte, error) {
	type post Post
	out := struct {
		post
		PriceAfter *decimal.Decimal `json:"price_after"`
	}{post: post(p)}
	if p.Resolved() {
		out.PriceAfter = &p.PriceAfter
	}
	return json.Marshal(out)
}

// Resolved reports whether the post has an outcome.
func (p Post) Resolved() bool { return p.Outcome.Resolved() }

// Resolve records the closing price and the outcome together.
func (p *Post) Resolve(priceAfter decimal.Decimal, d Direction) {
	p.PriceAfter = priceAfter
	p.Outcome = OutcomeOf(d)
}

// Guess is one guesser's prediction on one post.
type Guess struct {
	ID          string      `json:"id"`
	GuesserID   string      `json:"guesser_id"`
	PostID      string      `json:"post_id"`
	Direction   Direction   `json:"direction"`
	Correctness Correctness `json:"correctness"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Guesser is a participant and their running statistics.
type Guesser struct {
	ID             string    `json:"id"`
	Handle         string    `json:"handle"`
	Score          int64     `json:"score"`
	Streak         int       `json:"streak"`
	TotalGuesses   int       `json:"total_guesses"`
	CorrectGuesses int       `json:"correct_guesses"`
	CreatedAt      time.Time `json:"created_at"`
}

// Accuracy is the percentage of correct guesses, 0 when nothing was guessed yet.
func (g Guesser) Accuracy() float64 {
	if g.TotalGuesses == 0 {
		return 0
	}
	return float64(g.CorrectGuesses) / float64(g.TotalGuesses) * 100
}
