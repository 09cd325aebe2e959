package race

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// AdminOverview lists every room and every player that belongs to no room,
// including disconnected ones still waiting out their grace period.
func (s *Service) AdminOverview(ctx context.Context) (*model.AdminOverview, error) {
	var overview *model.AdminOverview
	err := s.read(ctx, func(st *state, now time.Time) error {
		overview = &model.AdminOverview{
			ServerTimeMs:    toMs(now),
			Rooms:           make([]model.AdminRoomView, 0, len(st.rooms)),
			DetachedPlayers: []model.AdminPlayerView{},
		}
		for _, code := range sortedKeys(st.roomByCode) {
			room := st.rooms[st.roomByCode[code]]
			view, err := roomView(st, room)
			if err != nil {
				return err
			}
			overview.Rooms = append(overview.Rooms, model.AdminRoomView{ID: room.ID, RoomView: *view})
		}
		for _, id := range sortedKeys(st.players) {
			if _, inRoom := st.roomByPlayer[id]; inRoom {
				continue
			}
			profile := st.players[id]
			player := model.AdminPlayerView{
				PlayerID:        id,
				Name:            profile.Name,
				ConnectionState: st.connectionState(id),
				LastSeenAtMs:    toMs(profile.LastSeenAt),
			}
			if sess, ok := st.sessions[id]; ok && !sess.IsConnected() && !sess.DisconnectedAt.IsZero() {
				at := sess.DisconnectedAt
				player.DisconnectedAtMs = optMs(&at)
			}
			overview.DetachedPlayers = append(overview.DetachedPlayers, player)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return overview, nil
}

// AdminKickPlayer removes a player from the room as a KICK. During an active
// match the player is marked LEAVE and removed once the match completes.
func (s *Service) AdminKickPlayer(ctx context.Context, rawCode string, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "admin_kick", func(st *state, now time.Time) error {
		room, err := adminRoomMember(st, rawCode, playerID)
		if err != nil {
			return err
		}
		out = affected(room.Players, []model.PlayerID{playerID})
		return leaveRoom(st, room, playerID, model.LeaveKick, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin kicked player", slog.String("room_code", rawCode), slog.String("player_id", string(playerID)))
	return out, nil
}

// AdminForceLeaveMatch marks a player LEAVE in the room's active match
// without removing them from the room. It unsticks a match waiting on a
// player who will never finish.
func (s *Service) AdminForceLeaveMatch(ctx context.Context, rawCode string, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "admin_force_leave_match", func(st *state, now time.Time) error {
		room, err := adminRoomMember(st, rawCode, playerID)
		if err != nil {
			return err
		}
		out = affected(room.Players, []model.PlayerID{playerID})
		return leaveMatch(st, room, playerID, model.LeaveKick, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin forced match leave", slog.String("room_code", rawCode), slog.String("player_id", string(playerID)))
	return out, nil
}

// AdminAbortMatch discards the room's active match whatever its progress and
// restores its configuration as the pending match.
func (s *Service) AdminAbortMatch(ctx context.Context, rawCode string) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "admin_abort_match", func(st *state, now time.Time) error {
		room, err := adminRoom(st, rawCode)
		if err != nil {
			return err
		}
		match := st.activeMatch(room)
		if match == nil {
			return model.ErrNoActiveMatch
		}
		out = append([]model.PlayerID(nil), room.Players...)
		restorePending(st, room, match, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin aborted match", slog.String("room_code", rawCode))
	return out, nil
}

// AdminRemoveDisconnectedPlayers applies the reconnect-timeout consequences
// right away to every disconnected member of the room.
func (s *Service) AdminRemoveDisconnectedPlayers(ctx context.Context, rawCode string) ([]model.PlayerID, error) {
	var (
		out     []model.PlayerID
		removed int
	)
	err := s.mutate(ctx, "admin_remove_disconnected", func(st *state, now time.Time) error {
		room, err := adminRoom(st, rawCode)
		if err != nil {
			return err
		}

		var targets []model.PlayerID
		for _, id := range room.Players {
			if st.connectionState(id) != model.ConnectionConnected && !room.IsPendingRemoval(id) {
				targets = append(targets, id)
			}
		}
		if len(targets) == 0 {
			return errUnchanged
		}

		for _, id := range targets {
			evicted, err := expireDisconnected(st, id, now)
			if err != nil {
				return err
			}
			out = affected(out, evicted)
		}
		removed = len(targets)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.logger.Info("admin removed disconnected players", slog.String("room_code", rawCode), slog.Int("removed", removed))
	}
	return out, nil
}

func adminRoom(st *state, rawCode string) (*model.Room, error) {
	code, err := normalizeRoomCode(rawCode)
	if err != nil {
		return nil, err
	}
	room := st.roomByCodeLookup(code)
	if room == nil {
		return nil, model.ErrRoomNotFound.Withf("room %q not found", code)
	}
	return room, nil
}

func adminRoomMember(st *state, rawCode string, playerID model.PlayerID) (*model.Room, error) {
	room, err := adminRoom(st, rawCode)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(playerID) {
		return nil, model.ErrPlayerNotInRoom.Withf("player %q is not in room %q", playerID, room.Code)
	}
	return room, nil
}
