package ws

import (
	"context"
	"log/slog"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/protocol"
	"github.com/mcoot/racecoord/internal/services/race"
)

func (h *Hub) handleFrame(ctx context.Context, client *Client, data []byte) {
	playerID, sessionID, authenticated := client.identity()
	if authenticated {
		if err := h.coordinator.TouchHeartbeat(ctx, playerID, sessionID); err != nil {
			h.logger.Warn("heartbeat touch failed",
				slog.String("player_id", string(playerID)),
				slog.Any("error", err))
		}
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		h.sendTo(client, protocol.NewError(err))
		return
	}

	switch {
	case msg.Type == protocol.TypePing:
		h.sendTo(client, protocol.NewPong(h.clock.Now().UnixMilli()))
		return
	case msg.Type == protocol.TypeHello && authenticated:
		h.sendTo(client, protocol.NewError(protocol.ErrAlreadyAuthenticated))
		return
	case msg.Type == protocol.TypeHello:
		h.fail(client, msg.Type, h.hello(ctx, client, msg))
		return
	case !authenticated:
		h.sendTo(client, protocol.NewError(protocol.ErrNotAuthenticated))
		return
	}

	h.fail(client, msg.Type, h.dispatch(ctx, client, playerID, msg))
}

// fail reports err to the sender. Anything without a domain code is logged
// and hidden behind INTERNAL_ERROR.
func (h *Hub) fail(client *Client, action string, err error) {
	if err == nil {
		return
	}
	if _, ok := model.CodeOf(err); !ok {
		playerID, _, _ := client.identity()
		h.logger.Error("unexpected websocket command failure",
			slog.String("action", action),
			slog.String("player_id", string(playerID)),
			slog.Any("error", err))
	}
	h.sendTo(client, protocol.NewError(err))
}

func (h *Hub) hello(ctx context.Context, client *Client, msg *protocol.ClientMessage) error {
	result, err := h.connect(ctx, client, msg)
	if err != nil {
		return err
	}

	h.logger.Info("player connected",
		slog.String("player_id", string(msg.PlayerID)),
		slog.String("session_id", string(result.SessionID)),
		slog.Bool("resumed", result.Resumed))

	h.sendTo(client, protocol.NewWelcome(
		msg.PlayerID,
		msg.Name,
		result.SessionID,
		result.Resumed,
		h.coordinator.ReconnectGrace().Milliseconds(),
	))
	h.NotifyPlayers(ctx, withActor(result.Affected, msg.PlayerID))
	return nil
}

// connect authenticates client and makes it the player's live connection.
// It runs under the lifecycle lock shared with disconnect.
func (h *Hub) connect(ctx context.Context, client *Client, msg *protocol.ClientMessage) (*race.ConnectResult, error) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	result, err := h.coordinator.Connect(ctx, msg.PlayerID, msg.Name, msg.SessionID)
	if err != nil {
		return nil, err
	}

	client.bind(msg.PlayerID, result.SessionID)
	if previous := h.register(client, msg.PlayerID); previous != nil {
		previous.close(ReplacedReason)
	}
	h.grace.CancelGrace(msg.PlayerID)
	return result, nil
}

func (h *Hub) dispatch(ctx context.Context, client *Client, actor model.PlayerID, msg *protocol.ClientMessage) error {
	var (
		affected []model.PlayerID
		err      error
	)

	switch msg.Type {
	case protocol.TypeSyncState:
		snapshot, err := h.coordinator.SnapshotFor(ctx, actor)
		if err != nil {
			return err
		}
		h.sendTo(client, protocol.NewState(snapshot))
		return nil

	case protocol.TypeAdvancement:
		return h.advancement(ctx, actor, msg.AdvancementID)

	case protocol.TypeCreateRoom:
		affected, err = h.coordinator.CreateRoom(ctx, actor)
	case protocol.TypeJoinRoom:
		affected, err = h.coordinator.JoinRoom(ctx, actor, msg.RoomCode)
	case protocol.TypeLeaveRoom:
		affected, err = h.coordinator.LeaveRoom(ctx, actor)
	case protocol.TypeLeaveMatch:
		affected, err = h.coordinator.LeaveMatch(ctx, actor)
	case protocol.TypeRollMatch:
		affected, err = h.coordinator.RollMatch(ctx, actor)
	case protocol.TypeStartMatch:
		affected, err = h.coordinator.StartMatch(ctx, actor)
	case protocol.TypeCancelStart:
		affected, err = h.coordinator.CancelStart(ctx, actor)
	case protocol.TypeReadyCheck:
		affected, err = h.coordinator.StartReadyCheck(ctx, actor)
	case protocol.TypeReadyCheckResponse:
		affected, err = h.coordinator.RespondReadyCheck(ctx, actor, msg.Ready)
	case protocol.TypeFinish:
		affected, err = h.coordinator.Finish(ctx, actor, msg.RTTMs, msg.IGTMs)
	case protocol.TypeDeath:
		affected, err = h.coordinator.ReportDeath(ctx, actor)
	default:
		return protocol.ErrBadRequest.Withf("Unknown message type")
	}
	if err != nil {
		return err
	}

	h.sendTo(client, protocol.NewAck(msg.Type))
	h.NotifyPlayers(ctx, withActor(affected, actor))
	return nil
}

// advancement relays a completed advancement to the reporter's room. Tab
// roots are dropped silently.
func (h *Hub) advancement(ctx context.Context, actor model.PlayerID, id string) error {
	if protocol.IsIgnorableAdvancement(id) {
		return nil
	}
	broadcast, err := h.coordinator.ReportAdvancement(ctx, actor, id)
	if err != nil {
		return err
	}
	frame := protocol.NewAdvancement(broadcast)
	for _, recipient := range broadcast.Recipients {
		if client := h.clientFor(recipient); client != nil {
			h.sendTo(client, frame)
		}
	}
	return nil
}

func withActor(affected []model.PlayerID, actor model.PlayerID) []model.PlayerID {
	for _, id := range affected {
		if id == actor {
			return affected
		}
	}
	return append(append([]model.PlayerID(nil), affected...), actor)
}
