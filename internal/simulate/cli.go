package simulate

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/bullbear/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger on stdout and, when logFile is set,
// also on that file. The returned func closes the file.
func SetupLogging(logFile string) (func() error, error) {
	if logFile == "" {
		return func() error { return nil }, logger.Init()
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file.Close, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Bull or Bear Simulator
======================

Registers guessers, tracks posts, submits random guesses, resolves each post
at a simulated price and verifies the leaderboard against locally computed
scores.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -guessers int
        Number of guessers to register (default 8)
  -rounds int
        Number of posts to play (default 5)
  -workers int
        Number of concurrent workers (default CPU cores)
  -top int
        Number of leaderboard entries to fetch (default 20)
  -swing float
        Index move per resolution (default 15)
  -seed int
        Random seed, 0 for a clock-based seed
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Disable the service's resolve_schedule while simulating; a scheduled
resolution between rounds makes verification fail.
`)
}
