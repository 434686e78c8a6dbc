package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/bullbear/internal/simulate"
	"github.com/okian/bullbear/pkg/logger"
)

// Default configuration constants.
const (
	defaultSwing      = 15.0
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL  = flag.String("url", simulate.DefaultBaseURL, "Base URL of the service")
		guessers = flag.Int("guessers", simulate.DefaultGuessers, "Number of guessers to register")
		rounds   = flag.Int("rounds", simulate.DefaultRounds, "Number of posts to play")
		workers  = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		topN     = flag.Int("top", simulate.DefaultTopN, "Number of leaderboard entries to fetch")
		swing    = flag.Float64("swing", defaultSwing, "Index move per resolution")
		seed     = flag.Int64("seed", 0, "Random seed, 0 for a clock-based seed")
		timeout  = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return 0
	}

	closeLog, err := simulate.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		_ = logger.Sync()
		_ = closeLog()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:  *baseURL,
		Guessers: *guessers,
		Rounds:   *rounds,
		Workers:  *workers,
		TopN:     *topN,
		Timeout:  *timeout,
		Swing:    decimal.NewFromFloat(*swing),
		Seed:     *seed,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
