package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/racecoord/internal/api"
	"github.com/mcoot/racecoord/internal/config"
	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/dependencies/idgen"
	"github.com/mcoot/racecoord/internal/dependencies/random"
	"github.com/mcoot/racecoord/internal/services/catalog"
	"github.com/mcoot/racecoord/internal/services/race"
	"github.com/mcoot/racecoord/internal/services/supervisor"
	"github.com/mcoot/racecoord/internal/storage"
	"github.com/mcoot/racecoord/internal/storage/file"
	"github.com/mcoot/racecoord/internal/storage/memory"
	pgstorage "github.com/mcoot/racecoord/internal/storage/postgres"
	redisstorage "github.com/mcoot/racecoord/internal/storage/redis"
	"github.com/mcoot/racecoord/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = config.ProviderMemory
	StorageTypeFile     = config.ProviderFile
	StorageTypeRedis    = config.ProviderRedis
	StorageTypePostgres = config.ProviderPostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Store

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	IDs    idgen.Generator

	// Services
	Catalog     *catalog.Service
	RaceService *race.Service
	Supervisor  *supervisor.Supervisor
	Hub         *ws.Hub

	// AdminToken guards the admin API; empty disables it
	AdminToken string

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the snapshot store
	// If empty, defaults to "memory"
	StorageType string
	// FilePath is the snapshot file (required if StorageType is "file")
	FilePath string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds connection settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// Race holds grace and heartbeat timeouts
	// Zero fields default to race.DefaultConfig() individually
	Race race.Config
	// Supervisor holds the watchdog interval
	// If zero, defaults to supervisor.DefaultConfig()
	Supervisor supervisor.Config
	// TargetItemsFile replaces the built-in target pool (optional)
	TargetItemsFile string
	// AdminToken enables the admin API (optional)
	AdminToken string
}

// FromSettings translates environment settings into a factory Config
func FromSettings(settings config.Config, logger *slog.Logger) Config {
	cfg := Config{
		Logger:      logger,
		StorageType: settings.PersistenceProvider,
		FilePath:    settings.PersistenceFile,
		Race: race.Config{
			ReconnectGrace: settings.ReconnectGrace,
			PingTimeout:    settings.PingTimeout,
		},
		Supervisor:      supervisor.Config{SweepInterval: settings.SweepInterval},
		TargetItemsFile: settings.TargetItemsFile,
		AdminToken:      settings.AdminToken,
	}
	switch settings.PersistenceProvider {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = settings.RedisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = settings.DBURL
		pgCfg.User = settings.DBUser
		pgCfg.Password = settings.DBPassword
		cfg.PostgresConfig = &pgCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool := catalog.New(logger)
	if cfg.TargetItemsFile != "" {
		if err := pool.LoadFromFile(cfg.TargetItemsFile); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	app := newWithDependencies(store, clock.New(), random.New(), idgen.New(), pool, cfg.Race.WithDefaults(), cfg.Supervisor, logger)
	app.AdminToken = cfg.AdminToken
	return app, nil
}

func newStore(ctx context.Context, cfg Config) (storage.Store, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeFile:
		return file.New(cfg.FilePath)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, file, redis or postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Store,
	clk clock.Clock,
	rnd random.Random,
	ids idgen.Generator,
	pool *catalog.Service,
	raceCfg race.Config,
	supCfg supervisor.Config,
	logger *slog.Logger,
) *App {
	raceService := race.NewService(store, pool, clk, rnd, ids, raceCfg, logger)
	sup := supervisor.New(raceService, clk, supCfg, logger)
	hub := ws.NewHub(raceService, sup, clk, logger)
	sup.Attach(hub)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		IDs:         ids,
		Catalog:     pool,
		RaceService: raceService,
		Supervisor:  sup,
		Hub:         hub,
		logger:      logger,
	}
}

// Router builds the HTTP handler serving the REST API and the websocket
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:      a.logger,
		Clock:       a.Clock,
		RaceService: a.RaceService,
		Hub:         a.Hub,
		Supervisor:  a.Supervisor,
		AdminToken:  a.AdminToken,
	})
}

// Start restores persisted state and starts the background supervisor.
// Corrupted persisted state stops startup here.
func (a *App) Start(ctx context.Context) error {
	if err := a.RaceService.Warmup(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if err := a.Supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}
	return nil
}

// Close stops background work, closes open connections and releases the store
func (a *App) Close() error {
	err := a.Supervisor.Stop()
	a.Hub.Close()
	return errors.Join(err, a.Storage.Close())
}
