package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoPendingPost     = errors.New("no pending post")
	ErrPendingPostExists = errors.New("a post is already awaiting resolution")
	ErrPostClosed        = errors.New("post is closed for guesses")
	ErrDuplicateGuess    = errors.New("guesser already guessed this post")
	ErrInvalidDirection  = errors.New("direction must be up or down")
	ErrInvalidHandle     = errors.New("handle must not be empty")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrNotStarted        = errors.New("service not started")
)
