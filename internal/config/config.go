package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Persistence providers
const (
	ProviderFile     = "file"
	ProviderRedis    = "redis"
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// Config is the server configuration
type Config struct {
	HTTPPort int
	LogLevel slog.Level

	ReconnectGrace time.Duration
	PingTimeout    time.Duration
	SweepInterval  time.Duration

	PersistenceEnabled  bool
	PersistenceProvider string
	PersistenceFile     string
	RedisURL            string
	DBURL               string
	DBUser              string
	DBPassword          string

	// TargetItemsFile replaces the built-in item pool when set
	TargetItemsFile string

	// AdminToken enables the admin API; requests must carry it
	AdminToken string
}

// Default returns the configuration used when no variables are set
func Default() Config {
	return Config{
		HTTPPort:            8080,
		LogLevel:            slog.LevelInfo,
		ReconnectGrace:      45 * time.Second,
		PingTimeout:         180 * time.Second,
		SweepInterval:       10 * time.Second,
		PersistenceEnabled:  true,
		PersistenceProvider: ProviderFile,
		PersistenceFile:     "data/race-state.json",
	}
}

// Load reads an optional .env file and then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from lookup, falling back to Default for
// anything unset
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	cfg.HTTPPort = getEnvInt(lookup, "RACE_HTTP_PORT", cfg.HTTPPort, &errs)
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("RACE_HTTP_PORT must be 1..65535, got %d", cfg.HTTPPort))
	}

	if raw := getEnvOrDefault(lookup, "RACE_LOG_LEVEL", ""); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			errs = append(errs, fmt.Errorf("RACE_LOG_LEVEL: %w", err))
		}
	}

	cfg.ReconnectGrace = getEnvMillis(lookup, "RACE_RECONNECT_GRACE_MS", cfg.ReconnectGrace, &errs)
	cfg.PingTimeout = getEnvMillis(lookup, "RACE_PING_TIMEOUT_MS", cfg.PingTimeout, &errs)
	if cfg.PingTimeout < time.Second {
		cfg.PingTimeout = time.Second
	}
	cfg.SweepInterval = getEnvMillis(lookup, "RACE_SWEEP_INTERVAL_MS", cfg.SweepInterval, &errs)
	if cfg.SweepInterval <= 0 {
		errs = append(errs, errors.New("RACE_SWEEP_INTERVAL_MS must be positive"))
	}

	if raw := getEnvOrDefault(lookup, "RACE_PERSISTENCE_ENABLED", ""); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("RACE_PERSISTENCE_ENABLED must be a boolean, got %q", raw))
		} else {
			cfg.PersistenceEnabled = enabled
		}
	}
	cfg.PersistenceProvider = strings.ToLower(getEnvOrDefault(lookup, "RACE_PERSISTENCE_PROVIDER", cfg.PersistenceProvider))
	if !cfg.PersistenceEnabled {
		cfg.PersistenceProvider = ProviderMemory
	}
	cfg.PersistenceFile = getEnvOrDefault(lookup, "RACE_PERSISTENCE_FILE", cfg.PersistenceFile)
	cfg.RedisURL = getEnvOrDefault(lookup, "RACE_REDIS_URL", "")
	cfg.DBURL = getEnvOrDefault(lookup, "RACE_DB_URL", "")
	cfg.DBUser = getEnvOrDefault(lookup, "RACE_DB_USER", "")
	cfg.DBPassword = getEnvOrDefault(lookup, "RACE_DB_PASSWORD", "")
	cfg.TargetItemsFile = getEnvOrDefault(lookup, "RACE_TARGET_ITEMS_FILE", "")
	cfg.AdminToken = strings.TrimSpace(getEnvOrDefault(lookup, "RACE_ADMIN_TOKEN", ""))

	switch cfg.PersistenceProvider {
	case ProviderMemory:
	case ProviderFile:
		if cfg.PersistenceFile == "" {
			errs = append(errs, errors.New("RACE_PERSISTENCE_FILE is required for the file provider"))
		}
	case ProviderRedis:
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("RACE_REDIS_URL is required for the redis provider"))
		}
	case ProviderPostgres:
		if cfg.DBURL == "" {
			errs = append(errs, errors.New("RACE_DB_URL is required for the postgres provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RACE_PERSISTENCE_PROVIDER %q", cfg.PersistenceProvider))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnvOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(lookup func(string) (string, bool), key string, fallback int, errs *[]error) int {
	raw := getEnvOrDefault(lookup, key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, raw))
		return fallback
	}
	return n
}

func getEnvMillis(lookup func(string) (string, bool), key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getEnvOrDefault(lookup, key, "")
	if raw == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a non-negative number of milliseconds, got %q", key, raw))
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
