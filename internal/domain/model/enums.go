package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned when parsing an unrecognized enum label.
var ErrUnknownValue = errors.New("unknown value")

// Direction is a predicted or observed market move.
// The zero value is invalid so an unset direction is never mistaken for a guess.
type Direction uint8

const (
	Up Direction = iota + 1
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is Up or Down.
func (d Direction) Valid() bool { return d == Up || d == Down }

// ParseDirection accepts up/down and the bull/bear aliases, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "bull":
		return Up, nil
	case "down", "bear":
		return Down, nil
	default:
		return 0, fmt.Errorf("direction %q: %w", s, ErrUnknownValue)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("direction %d: %w", uint8(d), ErrUnknownValue)
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Outcome is the resolved direction of a post, or Unresolved.
type Outcome uint8

const (
	Unresolved Outcome = iota
	OutcomeUp
	OutcomeDown
)

// OutcomeOf converts a resolved direction into an outcome.
func OutcomeOf(d Direction) Outcome {
	switch d {
	case Up:
		return OutcomeUp
	case Down:
		return OutcomeDown
	default:
		return Unresolved
	}
}

// Direction returns the direction of a resolved outcome and false when unresolved.
func (o Outcome) Direction() (Direction, bool) {
	switch o {
	case OutcomeUp:
		return Up, true
	case OutcomeDown:
		return Down, true
	default:
		return 0, false
	}
}

// Resolved reports whether the outcome is known.
func (o Outcome) Resolved() bool { return o == OutcomeUp || o == OutcomeDown }

func (o Outcome) String() string {
	switch o {
	case Unresolved:
		return "unresolved"
	case OutcomeUp:
		return "up"
	case OutcomeDown:
		return "down"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// ParseOutcome accepts unresolved (or empty), up/bull and down/bear.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unresolved":
		return Unresolved, nil
	case "up", "bull":
		return OutcomeUp, nil
	case "down", "bear":
		return OutcomeDown, nil
	default:
		return Unresolved, fmt.Errorf("outcome %q: %w", s, ErrUnknownValue)
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Correctness is the scoring state of a guess.
type Correctness uint8

const (
	Pending Correctness = iota
	Correct
	Incorrect
)

func (c Correctness) String() string {
	switch c {
	case Pending:
		return "pending"
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return fmt.Sprintf("correctness(%d)", uint8(c))
	}
}

// ParseCorrectness accepts pending, correct and incorrect.
func ParseCorrectness(s string) (Correctness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return Pending, nil
	case "correct":
		return Correct, nil
	case "incorrect":
		return Incorrect, nil
	default:
		return Pending, fmt.Errorf("correctness %q: %w", s, ErrUnknownValue)
	}
}

func (c Correctness) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Correctness) UnmarshalText(b []byte) error {
	v, err := ParseCorrectness(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
