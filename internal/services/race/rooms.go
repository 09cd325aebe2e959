package race

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/mcoot/racecoord/internal/model"
)

// CreateRoom opens a new room with the player as its only member and leader
func (s *Service) CreateRoom(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var (
		out  []model.PlayerID
		code model.RoomCode
	)
	err := s.mutate(ctx, "create_room", func(st *state, now time.Time) error {
		if _, ok := st.players[playerID]; !ok {
			return model.ErrPlayerNotConnected
		}
		if st.roomOf(playerID) != nil {
			return model.ErrPlayerAlreadyInRoom
		}

		var err error
		code, err = s.allocateRoomCode(st)
		if err != nil {
			return err
		}

		room := &model.Room{
			ID:       model.RoomID(s.ids.NewID()),
			Code:     code,
			Players:  []model.PlayerID{playerID},
			LeaderID: playerID,
		}
		st.rooms[room.ID] = room
		st.roomByCode[code] = room.ID
		st.roomByPlayer[playerID] = room.ID
		out = []model.PlayerID{playerID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("room created", slog.String("room_code", string(code)), slog.String("player_id", string(playerID)))
	return out, nil
}

// JoinRoom adds the player to the room with the given code
func (s *Service) JoinRoom(ctx context.Context, playerID model.PlayerID, rawCode string) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "join_room", func(st *state, now time.Time) error {
		if _, ok := st.players[playerID]; !ok {
			return model.ErrPlayerNotConnected
		}
		if st.roomOf(playerID) != nil {
			return model.ErrPlayerAlreadyInRoom
		}

		code, err := normalizeRoomCode(rawCode)
		if err != nil {
			return err
		}
		room := st.roomByCodeLookup(code)
		if room == nil {
			return model.ErrRoomNotFound.Withf("room %q not found", code)
		}
		if st.activeMatch(room) != nil {
			return model.ErrRoomMatchActive
		}

		room.AddMember(playerID)
		room.ReadyCheck = nil
		st.roomByPlayer[playerID] = room.ID
		ensureLeader(room)

		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	return out, err
}

// LeaveRoom removes the player from their room. During an active match the
// player is marked LEAVE and removed once the match completes.
func (s *Service) LeaveRoom(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "leave_room", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		out = affected(room.Players, []model.PlayerID{playerID})
		return leaveRoom(st, room, playerID, model.LeaveManual, now)
	})
	return out, err
}

// LeaveMatch marks the player LEAVE in the active match while keeping them in
// the room for the next one.
func (s *Service) LeaveMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "leave_match", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		out = affected(room.Players, []model.PlayerID{playerID})
		return leaveMatch(st, room, playerID, model.LeaveManual, now)
	})
	return out, err
}

// leaveMatch marks a running player LEAVE with the given reason. Players
// already terminal are left as they are.
func leaveMatch(st *state, room *model.Room, playerID model.PlayerID, reason model.LeaveReason, now time.Time) error {
	match := st.activeMatch(room)
	if match == nil {
		return model.ErrNoActiveMatch
	}
	current, ok := match.Players[playerID]
	if !ok {
		return model.ErrInvariantViolation.Withf("player %q in room %q is absent from match %q", playerID, room.ID, match.ID)
	}
	if current.Status() == model.StatusRunning {
		if err := match.Transition(playerID, model.Left{Reason: reason, At: now}, now); err != nil {
			return err
		}
	}
	completeMatchIfNeeded(st, room, match, now)
	return nil
}

// leaveRoom applies a departure with the given reason. Without an active
// match the player is removed immediately.
func leaveRoom(st *state, room *model.Room, playerID model.PlayerID, reason model.LeaveReason, now time.Time) error {
	match := st.activeMatch(room)
	if match == nil {
		removePlayerFromRoom(st, room, playerID)
		return nil
	}

	current, ok := match.Players[playerID]
	if !ok {
		return model.ErrInvariantViolation.Withf("player %q in room %q is absent from match %q", playerID, room.ID, match.ID)
	}
	if current.Status() == model.StatusRunning {
		if err := match.Transition(playerID, model.Left{Reason: reason, At: now}, now); err != nil {
			return err
		}
	}
	room.MarkPendingRemoval(playerID)
	ensureLeader(room)
	completeMatchIfNeeded(st, room, match, now)
	return nil
}

// ensureLeader promotes the first member not pending removal when the current
// leader has left or is on the way out.
func ensureLeader(room *model.Room) {
	if room.HasMember(room.LeaderID) && !room.IsPendingRemoval(room.LeaderID) {
		return
	}
	for _, id := range room.Players {
		if !room.IsPendingRemoval(id) {
			room.LeaderID = id
			return
		}
	}
	if len(room.Players) > 0 {
		room.LeaderID = room.Players[0]
	}
}

// requireLeader fails unless the player leads the room and is staying in it
func requireLeader(room *model.Room, playerID model.PlayerID) error {
	if room.LeaderID != playerID || room.IsPendingRemoval(playerID) {
		return model.ErrNotRoomLeader
	}
	return nil
}

// removePlayerFromRoom drops the player from the room, deleting the room when
// it empties. A player left roomless while disconnected is forgotten.
func removePlayerFromRoom(st *state, room *model.Room, playerID model.PlayerID) {
	room.RemoveMember(playerID)
	delete(st.roomByPlayer, playerID)
	room.ReadyCheck = nil

	if len(room.Players) == 0 {
		deleteRoom(st, room)
	} else {
		ensureLeader(room)
	}
	pruneDetachedPlayer(st, playerID)
}

func deleteRoom(st *state, room *model.Room) {
	delete(st.rooms, room.ID)
	delete(st.roomByCode, room.Code)
	for id, m := range st.matches {
		if m.RoomID == room.ID {
			delete(st.matches, id)
		}
	}
	for _, id := range room.PendingRemovals {
		delete(st.roomByPlayer, id)
	}
	room.PendingRemovals = nil
}

// pruneDetachedPlayer forgets a roomless player whose session is disconnected
func pruneDetachedPlayer(st *state, playerID model.PlayerID) {
	if _, ok := st.roomByPlayer[playerID]; ok {
		return
	}
	sess, ok := st.sessions[playerID]
	if !ok || sess.IsConnected() {
		return
	}
	delete(st.sessions, playerID)
	delete(st.players, playerID)
}

// normalizeRoomCode trims and uppercases a user-supplied code
func normalizeRoomCode(raw string) (model.RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if n := len([]rune(code)); n < 4 || n > 12 {
		return "", model.ErrInvalidRoomCode.Withf("roomCode length must be 4..12")
	}
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", model.ErrInvalidRoomCode.Withf("roomCode must be alphanumeric")
		}
	}
	return model.RoomCode(code), nil
}

func (s *Service) allocateRoomCode(st *state) (model.RoomCode, error) {
	for range MaxRoomCodeAttempts {
		code := model.RoomCode(s.random.String(model.RoomCodeLength, model.RoomCodeAlphabet))
		if code == "" {
			continue
		}
		if _, taken := st.roomByCode[code]; !taken {
			return code, nil
		}
	}
	return "", model.ErrRoomCodeExhausted
}
