// Package repository persists posts, guesses and guessers and ranks guessers.
package repository

import (
	"context"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/types"
)

// Store provides read/write access to game state.
type Store interface {
	// CreateGuesser adds a guesser. Returns ErrConflict when the id or handle is taken.
	CreateGuesser(ctx context.Context, g model.Guesser) error
	// Guesser returns ErrNotFound if the guesser is unknown.
	Guesser(ctx context.Context, id string) (model.Guesser, error)
	GuesserByHandle(ctx context.Context, handle string) (model.Guesser, error)
	// GuessersByID returns the known guessers among ids; unknown ids are omitted.
	GuessersByID(ctx context.Context, ids []string) (map[string]model.Guesser, error)

	// CreatePost adds a post. Returns ErrConflict when the id is taken.
	CreatePost(ctx context.Context, p model.Post) error
	Post(ctx context.Context, id string) (model.Post, error)
	// LatestPost returns the newest post by publish time (creation time when unpublished).
	LatestPost(ctx context.Context) (model.Post, error)
	// PendingPost returns the oldest unresolved post or ErrNotFound.
	PendingPost(ctx context.Context) (model.Post, error)

	// CreateGuess adds a guess. Returns ErrConflict when the guesser already guessed the post.
	CreateGuess(ctx context.Context, g model.Guess) error
	// GuessesForPost returns all guesses on a post, oldest first.
	GuessesForPost(ctx context.Context, postID string) ([]model.Guess, error)
	// GuessesByGuesser returns a guesser's history, newest first.
	GuessesByGuesser(ctx context.Context, guesserID string) ([]model.Guess, error)

	// PersistResolution commits a resolved post with its scored guesses and
	// updated guessers as one unit. It fails with scoring.ErrAlreadyResolved and
	// applies nothing when the stored post already has an outcome.
	PersistResolution(ctx context.Context, post model.Post, guesses []model.Guess, guessers []model.Guesser) error

	// TopN returns the top-N guessers ordered by score desc, handle asc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	// Rank returns ErrNotFound if the guesser is unknown.
	Rank(ctx context.Context, guesserID string) (types.Entry, error)
	// Count returns the number of guessers.
	Count(ctx context.Context) (int, error)

	Close() error
}

// guessKey identifies the single guess a guesser may place on a post.
func guessKey(guesserID, postID string) string {
	return guesserID + "\x00" + postID
}
