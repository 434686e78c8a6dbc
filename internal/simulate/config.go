package simulate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default simulation constants.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultGuessers = 8
	DefaultRounds   = 5
	DefaultTopN     = 20
	DefaultTimeout  = 10 * time.Second
)

// defaultStartPrice is the index level used when the server has no posts yet.
var defaultStartPrice = decimal.RequireFromString("4210.25")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string          // Base URL of the service
	Guessers int             // Number of guessers to register
	Rounds   int             // Number of posts to track, guess on and resolve
	Workers  int             // Number of concurrent workers
	TopN     int             // Number of leaderboard entries to fetch
	Timeout  time.Duration   // HTTP request timeout
	Swing    decimal.Decimal // Index move applied at each resolution
	Seed     int64           // Random seed; 0 picks one from the clock
	LogFile  string          // Log file for run output
	Verbose  bool            // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	GuessersRegistered int
	GuessesSubmitted   int
	GuessesRejected    int
	Retries            int64
	Rounds             int
	GuessesCorrect     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.Guessers <= 0 {
		out.Guessers = DefaultGuessers
	}
	if out.Rounds <= 0 {
		out.Rounds = DefaultRounds
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.TopN <= 0 {
		out.TopN = DefaultTopN
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if !out.Swing.IsPositive() {
		out.Swing = decimal.NewFromInt(15)
	}
	if out.Seed == 0 {
		out.Seed = time.Now().UnixNano()
	}
	return &out
}
