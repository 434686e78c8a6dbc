package simulate

import (
	"errors"
	"fmt"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/types"
)

// verifyLeaderboard checks ordering (score desc, handle asc) and dense ranks.
func verifyLeaderboard(entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if entries[0].Rank != 1 {
		return fmt.Errorf("%w: top entry has rank %d", ErrVerification, entries[0].Rank)
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		switch {
		case cur.Score > prev.Score:
			return fmt.Errorf("%w: entry %d (%d) outscores entry %d (%d)", ErrVerification, i, cur.Score, i-1, prev.Score)
		case cur.Score == prev.Score && cur.Rank != prev.Rank:
			return fmt.Errorf("%w: tied entries %d and %d have ranks %d and %d", ErrVerification, i-1, i, prev.Rank, cur.Rank)
		case cur.Score == prev.Score && cur.Handle < prev.Handle:
			return fmt.Errorf("%w: tied entries %s and %s out of handle order", ErrVerification, prev.Handle, cur.Handle)
		case cur.Score < prev.Score && cur.Rank != prev.Rank+1:
			return fmt.Errorf("%w: entry %d has rank %d after rank %d", ErrVerification, i, cur.Rank, prev.Rank)
		}
	}
	return nil
}

// verifyGuesser compares the server's view of a guesser with the expected
// statistics.
func verifyGuesser(want model.Guesser, got types.Entry) error {
	var errs []error
	if got.Score != want.Score {
		errs = append(errs, fmt.Errorf("score %d, want %d", got.Score, want.Score))
	}
	if got.Streak != want.Streak {
		errs = append(errs, fmt.Errorf("streak %d, want %d", got.Streak, want.Streak))
	}
	if got.Total != want.TotalGuesses {
		errs = append(errs, fmt.Errorf("total guesses %d, want %d", got.Total, want.TotalGuesses))
	}
	if got.Correct != want.CorrectGuesses {
		errs = append(errs, fmt.Errorf("correct guesses %d, want %d", got.Correct, want.CorrectGuesses))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: guesser %s: %w", ErrVerification, want.Handle, errors.Join(errs...))
}
