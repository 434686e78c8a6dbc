// Package types contains read shapes shared by the store, service and API.
package types

import "github.com/okian/bullbear/internal/domain/model"

// Entry represents a leaderboard entry.
// Guessers with equal scores share a rank.
type Entry struct {
	Rank      int     `json:"rank"`
	GuesserID string  `json:"guesser_id"`
	Handle    string  `json:"handle"`
	Score     int64   `json:"score"`
	Streak    int     `json:"streak"`
	Total     int     `json:"total_guesses"`
	Correct   int     `json:"correct_guesses"`
	Accuracy  float64 `json:"accuracy"`
}

// EntryFor builds an entry from a guesser at the given rank.
func EntryFor(rank int, g model.Guesser) Entry {
	return Entry{
		Rank:      rank,
		GuesserID: g.ID,
		Handle:    g.Handle,
		Score:     g.Score,
		Streak:    g.Streak,
		Total:     g.TotalGuesses,
		Correct:   g.CorrectGuesses,
		Accuracy:  g.Accuracy(),
	}
}

// Profile is a guesser with derived statistics and their guess history.
type Profile struct {
	Guesser  model.Guesser `json:"guesser"`
	Rank     int           `json:"rank"`
	Accuracy float64       `json:"accuracy"`
	Guesses  []model.Guess `json:"guesses"`
}

// Stats summarizes service state.
type Stats struct {
	Guessers       int    `json:"guessers"`
	PendingPostID  string `json:"pending_post_id,omitempty"`
	PendingGuesses int    `json:"pending_guesses"`
	BasePoints     int64  `json:"base_points"`
}
