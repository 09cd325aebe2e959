package race

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/dependencies/idgen"
	"github.com/mcoot/racecoord/internal/dependencies/random"
	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage"
)

const (
	// MaxRoomCodeAttempts bounds the retries when allocating a unique room code
	MaxRoomCodeAttempts = 1000
	// MaxAdvancementLength is the longest accepted advancement id
	MaxAdvancementLength = 256
	// MinPingTimeout is the smallest heartbeat timeout the service accepts
	MinPingTimeout = time.Second
)

// TargetPool supplies the items a match can be rolled against
type TargetPool interface {
	Items() []string
}

// Config holds the timing settings of the service
type Config struct {
	ReconnectGrace time.Duration
	PingTimeout    time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ReconnectGrace: 45 * time.Second,
		PingTimeout:    180 * time.Second,
	}
}

// WithDefaults fills every zero field from DefaultConfig
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if c.ReconnectGrace <= 0 {
		c.ReconnectGrace = defaults.ReconnectGrace
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaults.PingTimeout
	}
	return c
}

// errUnchanged lets an operation report that it had nothing to do, so
// neither validation nor a save is needed.
var errUnchanged = errors.New("state unchanged")

// Service is the single entry point for every state change. All operations
// run behind one mutex; after each mutation the full state is validated and
// saved before the lock is released.
type Service struct {
	store  storage.Store
	pool   TargetPool
	clock  clock.Clock
	random random.Random
	ids    idgen.Generator
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	st       *state
	hydrated bool
}

// NewService creates a new race Service. store may be nil, in which case
// state lives in memory only.
func NewService(
	store storage.Store,
	pool TargetPool,
	clock clock.Clock,
	random random.Random,
	ids idgen.Generator,
	config Config,
	logger *slog.Logger,
) *Service {
	if config.PingTimeout < MinPingTimeout {
		config.PingTimeout = MinPingTimeout
	}
	return &Service{
		store:  store,
		pool:   pool,
		clock:  clock,
		random: random,
		ids:    ids,
		config: config,
		logger: logger.With(slog.String("component", "race")),
		st:     newState(),
	}
}

// ReconnectGrace returns how long a disconnected session may be resumed
func (s *Service) ReconnectGrace() time.Duration {
	return s.config.ReconnectGrace
}

// PingTimeout returns how long a connected session may stay silent
func (s *Service) PingTimeout() time.Duration {
	return s.config.PingTimeout
}

// Warmup loads persisted state and validates it, so a corrupt snapshot
// surfaces at startup instead of on the first client message.
func (s *Service) Warmup(ctx context.Context) error {
	return s.read(ctx, func(st *state, _ time.Time) error {
		return validate(st)
	})
}

// Stats returns counts of the tracked entities
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := s.read(ctx, func(st *state, _ time.Time) error {
		stats.Players = len(st.players)
		stats.Rooms = len(st.rooms)
		for _, sess := range st.sessions {
			if sess.IsConnected() {
				stats.ConnectedPlayers++
			}
		}
		for _, m := range st.matches {
			if m.IsActive() {
				stats.ActiveMatches++
			}
		}
		return nil
	})
	return stats, err
}

// mutate runs fn against the live state. If fn fails, or the result breaks an
// invariant, or it cannot be saved, the state is rolled back to what it was
// before fn ran and the error is returned.
func (s *Service) mutate(ctx context.Context, op string, fn func(st *state, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return err
	}

	now := s.clock.Now()
	pruneReadyChecks(s.st, now)
	checkpoint := s.st.clone()

	if err := fn(s.st, now); err != nil {
		s.st = checkpoint
		if errors.Is(err, errUnchanged) {
			return nil
		}
		if errors.Is(err, model.ErrInvariantViolation) {
			s.logger.Error("invariant violated", slog.String("op", op), slog.String("error", err.Error()))
		}
		return err
	}

	if err := validate(s.st); err != nil {
		s.st = checkpoint
		s.logger.Error("invariant violated", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}

	if err := s.persistLocked(ctx, now); err != nil {
		s.st = checkpoint
		s.logger.Error("failed to persist state", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// read runs fn against the live state without saving anything
func (s *Service) read(ctx context.Context, fn func(st *state, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hydrateLocked(ctx); err != nil {
		return err
	}
	now := s.clock.Now()
	pruneReadyChecks(s.st, now)
	return fn(s.st, now)
}

// hydrateLocked loads the persisted snapshot the first time any operation runs
func (s *Service) hydrateLocked(ctx context.Context) error {
	if s.hydrated {
		return nil
	}
	if s.store == nil {
		s.hydrated = true
		return nil
	}

	snapshot, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, model.ErrPersistenceCorrupted) {
			s.logger.Error("persisted state is corrupted", slog.String("error", err.Error()))
			return err
		}
		return fmt.Errorf("load persisted state: %w", err)
	}
	if snapshot == nil {
		s.hydrated = true
		return nil
	}

	st, err := importState(snapshot, s.clock.Now())
	if err != nil {
		s.logger.Error("persisted state is corrupted", slog.String("error", err.Error()))
		return err
	}
	if err := validate(st); err != nil {
		s.logger.Error("persisted state breaks invariants", slog.String("error", err.Error()))
		return model.ErrPersistenceCorrupted.Withf("persisted state breaks invariants: %v", err)
	}

	s.st = st
	s.hydrated = true
	s.logger.Info("hydrated state",
		slog.Int("players", len(st.players)),
		slog.Int("rooms", len(st.rooms)),
		slog.Int("matches", len(st.matches)),
	)
	return nil
}

func (s *Service) persistLocked(ctx context.Context, now time.Time) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, exportState(s.st, now)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Export returns the current persisted form of the state
func (s *Service) Export(ctx context.Context) (*model.PersistedState, error) {
	var snapshot *model.PersistedState
	err := s.read(ctx, func(st *state, now time.Time) error {
		snapshot = exportState(st, now)
		return nil
	})
	return snapshot, err
}

// affected merges the given player id lists, keeping first-seen order
func affected(lists ...[]model.PlayerID) []model.PlayerID {
	var out []model.PlayerID
	for _, list := range lists {
		for _, id := range list {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}
