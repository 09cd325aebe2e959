package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/racecoord/internal/dependencies/clock"
	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/protocol"
	"github.com/mcoot/racecoord/internal/services/race"
)

// ReplacedReason is sent to a connection superseded by a newer hello
const ReplacedReason = "Replaced by newer session"

// Coordinator is the part of the race service driven by websocket commands
type Coordinator interface {
	Connect(ctx context.Context, playerID model.PlayerID, name string, requestedSessionID model.SessionID) (*race.ConnectResult, error)
	Disconnect(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) ([]model.PlayerID, error)
	TouchHeartbeat(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) error
	ReconnectGrace() time.Duration

	CreateRoom(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	JoinRoom(ctx context.Context, playerID model.PlayerID, rawCode string) ([]model.PlayerID, error)
	LeaveRoom(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	LeaveMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)

	RollMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	StartMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	CancelStart(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	Finish(ctx context.Context, playerID model.PlayerID, rttMs, igtMs int64) ([]model.PlayerID, error)
	ReportDeath(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	ReportAdvancement(ctx context.Context, playerID model.PlayerID, rawID string) (*model.AdvancementBroadcast, error)

	StartReadyCheck(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error)
	RespondReadyCheck(ctx context.Context, playerID model.PlayerID, ready bool) ([]model.PlayerID, error)

	SnapshotFor(ctx context.Context, playerID model.PlayerID) (*model.RaceSnapshot, error)
}

// GraceScheduler arms and cancels reconnect grace timers
type GraceScheduler interface {
	ScheduleGrace(playerID model.PlayerID, sessionID model.SessionID, disconnectedAt time.Time)
	CancelGrace(playerID model.PlayerID)
}

// Hub tracks the live connection of each player and fans state out to them
type Hub struct {
	coordinator Coordinator
	grace       GraceScheduler
	clock       clock.Clock
	logger      *slog.Logger

	// lifecycle orders hello against connection teardown so a stale
	// connection never disconnects the session that just resumed
	lifecycle sync.Mutex

	mu      sync.RWMutex
	clients map[model.PlayerID]*Client
	all     map[*Client]struct{}
}

// NewHub creates a new Hub
func NewHub(coordinator Coordinator, grace GraceScheduler, clk clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		coordinator: coordinator,
		grace:       grace,
		clock:       clk,
		logger:      logger.With(slog.String("component", "ws-hub")),
		clients:     make(map[model.PlayerID]*Client),
		all:         make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	client := newClient(conn, h.clock.Now())
	h.track(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return client.readLoop(ctx, func(ctx context.Context, data []byte) {
			h.handleFrame(ctx, client, data)
		})
	})
	eg.Go(func() error {
		return client.writeLoop(ctx)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("websocket connection ended", slog.Any("error", err))
	}

	h.release(client)
}

// NotifyPlayers pushes a fresh snapshot to each listed player that has a
// live connection
func (h *Hub) NotifyPlayers(ctx context.Context, playerIDs []model.PlayerID) {
	for _, id := range playerIDs {
		client := h.clientFor(id)
		if client == nil {
			continue
		}
		snapshot, err := h.coordinator.SnapshotFor(ctx, id)
		if err != nil {
			h.logger.Debug("snapshot unavailable",
				slog.String("player_id", string(id)),
				slog.Any("error", err))
			continue
		}
		h.sendTo(client, protocol.NewState(snapshot))
	}
}

// CloseSession closes the player's connection if it still belongs to the
// given session. The connection is dropped from the hub first so its own
// teardown does not report a second disconnect.
func (h *Hub) CloseSession(playerID model.PlayerID, sessionID model.SessionID, reason string) {
	h.mu.Lock()
	client, ok := h.clients[playerID]
	if ok {
		if _, sid, _ := client.identity(); sid != sessionID {
			ok = false
		} else {
			delete(h.clients, playerID)
		}
	}
	h.mu.Unlock()

	if ok {
		client.close(reason)
	}
}

// Close closes every open connection
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.all))
	for c := range h.all {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close("Server shutting down")
	}
	h.logger.Info("ws hub closed", slog.Int("closed_connections", len(clients)))
}

// ClientCount returns the number of players with a live connection
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) track(client *Client) {
	h.mu.Lock()
	h.all[client] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) clientFor(playerID model.PlayerID) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[playerID]
}

// register makes client the player's live connection and returns the one it
// replaced, if any
func (h *Hub) register(client *Client, playerID model.PlayerID) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.clients[playerID]
	h.clients[playerID] = client
	if previous == client {
		return nil
	}
	return previous
}

// release runs when a connection ends. Only the player's current connection
// reports a disconnect; replaced or force-closed ones leave no trace.
func (h *Hub) release(client *Client) {
	if affected := h.disconnect(client); len(affected) > 0 {
		h.NotifyPlayers(context.Background(), affected)
	}
}

// disconnect drops client from the hub and, if it was still the player's
// current connection, marks the session disconnected and arms the grace
// timer. It holds the lifecycle lock so a concurrent hello either resumes
// after the disconnect or makes this connection stale before it.
func (h *Hub) disconnect(client *Client) []model.PlayerID {
	playerID, sessionID, bound := client.identity()

	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	h.mu.Lock()
	delete(h.all, client)
	current := bound && h.clients[playerID] == client
	if current {
		delete(h.clients, playerID)
	}
	h.mu.Unlock()

	if !current {
		return nil
	}

	h.logger.Info("player connection closed",
		slog.String("player_id", string(playerID)),
		slog.Duration("connection_duration", h.clock.Now().Sub(client.connectedAt)))

	affected, err := h.coordinator.Disconnect(context.Background(), playerID, sessionID)
	if err != nil {
		h.logger.Error("disconnect failed",
			slog.String("player_id", string(playerID)),
			slog.Any("error", err))
		return nil
	}
	if len(affected) > 0 {
		h.grace.ScheduleGrace(playerID, sessionID, h.clock.Now())
	}
	return affected
}

func (h *Hub) sendTo(client *Client, msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode server message", slog.Any("error", err))
		return
	}
	if !client.enqueue(data) {
		playerID, _, _ := client.identity()
		h.logger.Warn("ws message dropped - client buffer full",
			slog.String("player_id", string(playerID)))
	}
}
