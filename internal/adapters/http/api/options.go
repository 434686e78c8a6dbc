package api

// Default handler configuration constants.
const (
	DefaultMaxLeaderboardLimit = 100
	DefaultGuessRatePerSec     = 5
	DefaultGuessRateBurst      = 10
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLeaderboardLimit sets the largest accepted leaderboard limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithGuessRateLimit throttles guess submission to perSec with the given burst.
func WithGuessRateLimit(perSec float64, burst int) Option {
	return func(s *Server) {
		if perSec > 0 && burst > 0 {
			s.guessRate, s.guessBurst = perSec, burst
		}
	}
}
