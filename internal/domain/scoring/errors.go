package scoring

import (
	"errors"
	"fmt"
)

// Sentinel kinds for scoring errors.
var (
	ErrAlreadyResolved   = errors.New("post already resolved")
	ErrUnresolvedPost    = errors.New("post has no outcome")
	ErrGuessNotPending   = errors.New("guess is not pending")
	ErrGuessPostMismatch = errors.New("guess does not reference post")
	ErrDanglingGuesser   = errors.New("guess references unknown guesser")
)

// DanglingGuesserReference reports a guess whose guesser was not supplied.
// The guess is still scored; only guesser statistics are skipped.
type DanglingGuesserReference struct {
	GuessID   string
	GuesserID string
}

func (d DanglingGuesserReference) Error() string {
	return fmt.Sprintf("guess %s: guesser %s not found", d.GuessID, d.GuesserID)
}

// Is matches ErrDanglingGuesser.
func (d DanglingGuesserReference) Is(target error) bool {
	return target == ErrDanglingGuesser
}
