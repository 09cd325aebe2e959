package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS race_state_snapshot (
	singleton_id SMALLINT PRIMARY KEY,
	schema_version INT NOT NULL,
	saved_at_ms BIGINT NOT NULL,
	payload TEXT NOT NULL
)`

	selectSnapshotSQL = `SELECT payload FROM race_state_snapshot WHERE singleton_id = 1`

	upsertSnapshotSQL = `INSERT INTO race_state_snapshot (singleton_id, schema_version, saved_at_ms, payload)
VALUES (1, $1, $2, $3)
ON CONFLICT (singleton_id) DO UPDATE SET
	schema_version = EXCLUDED.schema_version,
	saved_at_ms = EXCLUDED.saved_at_ms,
	payload = EXCLUDED.payload`
)

// DB is the subset of *pgxpool.Pool used by the store
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Storage keeps the snapshot in a single-row Postgres table
type Storage struct {
	db DB
}

// New connects a pool, verifies it and creates the snapshot table if missing
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.User != "" {
		poolCfg.ConnConfig.User = cfg.User
	}
	if cfg.Password != "" {
		poolCfg.ConnConfig.Password = cfg.Password
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewWithDB(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection (for testing)
func NewWithDB(db DB) *Storage {
	return &Storage{db: db}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

// EnsureSchema creates the snapshot table if it does not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

func (s *Storage) Load(ctx context.Context) (*model.PersistedState, error) {
	var payload string
	if err := s.db.QueryRow(ctx, selectSnapshotSQL).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return storage.Decode([]byte(payload))
}

func (s *Storage) Save(ctx context.Context, state *model.PersistedState) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertSnapshotSQL, state.SchemaVersion, state.SavedAtMs, string(data)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}
