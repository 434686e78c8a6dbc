package simulate

import (
	"errors"
	"fmt"
)

// Sentinel kinds for simulation errors.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("verification failed")
)

// StatusError is a non-success API response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an API response with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
