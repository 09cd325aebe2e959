package postgres

import "time"

// Config holds Postgres connection settings
type Config struct {
	// URL is a postgres:// connection string
	URL string

	// User and Password override the credentials in URL when set
	User     string
	Password string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns sensible defaults for a small single-writer workload
func DefaultConfig() Config {
	return Config{
		URL:             "postgres://localhost:5432/race",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}
