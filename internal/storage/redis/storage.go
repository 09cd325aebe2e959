package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage"
)

// Storage is a Redis-backed snapshot store
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) Load(ctx context.Context) (*model.PersistedState, error) {
	data, err := s.client.Get(ctx, snapshotKey(s.cfg.KeyPrefix)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return storage.Decode(data)
}

// Save writes the payload and its metadata in one MULTI/EXEC transaction
func (s *Storage) Save(ctx context.Context, state *model.PersistedState) error {
	data, err := storage.Encode(state)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotKey(s.cfg.KeyPrefix), data, s.cfg.SnapshotTTL)
	pipe.HSet(ctx, snapshotMetaKey(s.cfg.KeyPrefix),
		"schema_version", state.SchemaVersion,
		"saved_at_ms", state.SavedAtMs,
		"players", len(state.Players),
		"rooms", len(state.Rooms),
		"matches", len(state.Matches),
	)
	if s.cfg.SnapshotTTL > 0 {
		pipe.Expire(ctx, snapshotMetaKey(s.cfg.KeyPrefix), s.cfg.SnapshotTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Meta returns the metadata hash written alongside the last snapshot
func (s *Storage) Meta(ctx context.Context) (map[string]string, error) {
	return s.client.HGetAll(ctx, snapshotMetaKey(s.cfg.KeyPrefix)).Result()
}
