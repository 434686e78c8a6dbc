package seed

import "errors"

// Sentinel kinds for seed errors.
var (
	ErrInvalidFixtures = errors.New("invalid fixtures")
)
