package pricefeed

import "errors"

// Sentinel kinds for price sampling errors.
var (
	ErrNoPrice     = errors.New("no closing price available")
	ErrUnavailable = errors.New("price source unavailable")
)
