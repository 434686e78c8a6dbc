package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) SQLOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) SQLOption {
	return func(s *SQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}
