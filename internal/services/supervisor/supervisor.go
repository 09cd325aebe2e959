package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/services/race"
)

// PingTimeoutReason is sent to a connection closed by the heartbeat watchdog
const PingTimeoutReason = "Ping timeout"

// Coordinator is the part of the race service the supervisor drives
type Coordinator interface {
	ReconnectGrace() time.Duration
	HandleReconnectTimeout(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) ([]model.PlayerID, error)
	ExpireStaleSessions(ctx context.Context) ([]race.ExpiredSession, error)
	EvictInactiveDisconnected(ctx context.Context) ([]model.PlayerID, error)
	DisconnectedSessions(ctx context.Context) ([]race.SessionRef, error)
}

// Transport pushes state to connected players and closes their connections
type Transport interface {
	NotifyPlayers(ctx context.Context, playerIDs []model.PlayerID)
	CloseSession(playerID model.PlayerID, sessionID model.SessionID, reason string)
}

// Config holds supervisor settings
type Config struct {
	// SweepInterval is how often the heartbeat watchdog runs
	SweepInterval time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{SweepInterval: 10 * time.Second}
}

type graceTimer struct {
	timer     clock.Timer
	sessionID model.SessionID
	seq       uint64
}

// Supervisor owns the reconnect grace timers and the heartbeat watchdog.
// Every timer re-validates through the coordinator, so a timer that fires
// late or for a replaced session does nothing.
type Supervisor struct {
	coordinator Coordinator
	clock       clock.Clock
	config      Config
	logger      *slog.Logger

	mu        sync.Mutex
	transport Transport
	timers    map[model.PlayerID]*graceTimer
	seq       uint64
	scheduler gocron.Scheduler
}

// New creates a new Supervisor. Attach a transport before starting it.
func New(coordinator Coordinator, clk clock.Clock, config Config, logger *slog.Logger) *Supervisor {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Supervisor{
		coordinator: coordinator,
		clock:       clk,
		config:      config,
		logger:      logger.With(slog.String("component", "supervisor")),
		timers:      make(map[model.PlayerID]*graceTimer),
	}
}

// Attach sets the transport used for notifications and forced closes
func (s *Supervisor) Attach(transport Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = transport
}

// Start schedules grace timers for sessions that were already disconnected,
// such as those restored from a snapshot, and starts the watchdog.
func (s *Supervisor) Start(ctx context.Context) error {
	refs, err := s.coordinator.DisconnectedSessions(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		s.ScheduleGrace(ref.PlayerID, ref.SessionID, ref.DisconnectedAt)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLogger(s.logger))
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.config.SweepInterval),
		gocron.NewTask(func() {
			s.Sweep(context.Background())
		}),
		gocron.WithName("heartbeat-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}
	scheduler.Start()

	s.mu.Lock()
	s.scheduler = scheduler
	s.mu.Unlock()

	s.logger.Info("supervisor started",
		slog.Int("restored_timers", len(refs)),
		slog.Duration("sweep_interval", s.config.SweepInterval))
	return nil
}

// Stop shuts down the watchdog and cancels every pending grace timer
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	return scheduler.Shutdown()
}

// ScheduleGrace arms the reconnect timer for a session that disconnected at
// the given time, replacing any timer the player already had.
func (s *Supervisor) ScheduleGrace(playerID model.PlayerID, sessionID model.SessionID, disconnectedAt time.Time) {
	remaining := s.coordinator.ReconnectGrace() - s.clock.Now().Sub(disconnectedAt)
	if remaining < 0 {
		remaining = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[playerID]; ok {
		old.timer.Stop()
	}
	s.seq++
	seq := s.seq
	entry := &graceTimer{sessionID: sessionID, seq: seq}
	s.timers[playerID] = entry
	entry.timer = s.clock.AfterFunc(remaining, func() {
		s.fireGrace(playerID, sessionID, seq)
	})
}

// CancelGrace drops the player's pending grace timer, if any
func (s *Supervisor) CancelGrace(playerID model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[playerID]; ok {
		t.timer.Stop()
		delete(s.timers, playerID)
	}
}

// PendingGrace reports how many grace timers are armed
func (s *Supervisor) PendingGrace() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Supervisor) fireGrace(playerID model.PlayerID, sessionID model.SessionID, seq uint64) {
	s.mu.Lock()
	if t, ok := s.timers[playerID]; ok && t.seq == seq {
		delete(s.timers, playerID)
	}
	s.mu.Unlock()

	ctx := context.Background()
	affected, err := s.coordinator.HandleReconnectTimeout(ctx, playerID, sessionID)
	if err != nil {
		s.logger.Error("reconnect timeout failed",
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()))
		return
	}
	if len(affected) == 0 {
		return
	}
	s.logger.Info("reconnect grace expired", slog.String("player_id", string(playerID)))
	s.notify(ctx, affected)
}

// Sweep runs one pass of the heartbeat watchdog: silent sessions are forced
// out and closed, then long-disconnected sessions are evicted.
func (s *Supervisor) Sweep(ctx context.Context) {
	var notify []model.PlayerID

	expired, err := s.coordinator.ExpireStaleSessions(ctx)
	if err != nil {
		s.logger.Error("heartbeat sweep failed", slog.String("error", err.Error()))
	}
	for _, e := range expired {
		if t := s.currentTransport(); t != nil {
			t.CloseSession(e.PlayerID, e.SessionID, PingTimeoutReason)
		}
		s.ScheduleGrace(e.PlayerID, e.SessionID, e.DisconnectedAt)
		notify = append(notify, e.Affected...)
	}

	evicted, err := s.coordinator.EvictInactiveDisconnected(ctx)
	if err != nil {
		s.logger.Error("inactive eviction failed", slog.String("error", err.Error()))
	}
	notify = append(notify, evicted...)

	if len(expired) > 0 || len(evicted) > 0 {
		s.logger.Info("heartbeat sweep",
			slog.Int("expired", len(expired)),
			slog.Int("evicted_affected", len(evicted)))
	}
	if len(notify) > 0 {
		s.notify(ctx, notify)
	}
}

func (s *Supervisor) currentTransport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func (s *Supervisor) notify(ctx context.Context, playerIDs []model.PlayerID) {
	if t := s.currentTransport(); t != nil {
		t.NotifyPlayers(ctx, playerIDs)
	}
}
