package schedule

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrShutdownTimeout = errors.New("scheduler shutdown timed out")
)
