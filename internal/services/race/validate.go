package race

import (
	"github.com/mcoot/racecoord/internal/model"
)

// validate checks every cross-entity invariant of the state. It never
// mutates anything.
func validate(st *state) error {
	seen := make(map[model.PlayerID]model.RoomID)

	for roomID, room := range st.rooms {
		if room.ID != roomID {
			return violation("room %q is stored under id %q", room.ID, roomID)
		}
		if len(room.Players) == 0 {
			return violation("room %q has no players", roomID)
		}
		if !room.HasMember(room.LeaderID) {
			return violation("room %q leader %q is not a member", roomID, room.LeaderID)
		}
		if room.IsPendingRemoval(room.LeaderID) {
			return violation("room %q leader %q is pending removal", roomID, room.LeaderID)
		}
		if indexed, ok := st.roomByCode[room.Code]; !ok || indexed != roomID {
			return violation("room %q code %q is not indexed", roomID, room.Code)
		}
		if room.CurrentMatchID != nil && room.PendingMatch != nil {
			return violation("room %q has both active and pending match", roomID)
		}
		if room.CurrentMatchID != nil && room.ReadyCheck != nil {
			return violation("room %q has both active match and ready check", roomID)
		}

		for _, id := range room.Players {
			if other, dup := seen[id]; dup {
				return violation("player %q is in rooms %q and %q", id, other, roomID)
			}
			seen[id] = roomID
			if _, ok := st.players[id]; !ok {
				return violation("room %q member %q has no profile", roomID, id)
			}
			if indexed, ok := st.roomByPlayer[id]; !ok || indexed != roomID {
				return violation("room %q member %q is not indexed", roomID, id)
			}
		}
		for _, id := range room.PendingRemovals {
			if !room.HasMember(id) {
				return violation("room %q pending removal %q is not a member", roomID, id)
			}
		}

		if err := validateReadyCheck(room); err != nil {
			return err
		}
		if err := validateCurrentMatch(st, room); err != nil {
			return err
		}
	}

	for id, roomID := range st.roomByPlayer {
		room, ok := st.rooms[roomID]
		if !ok {
			return violation("player %q points to missing room %q", id, roomID)
		}
		if !room.HasMember(id) {
			return violation("player %q mapping inconsistent with room %q", id, roomID)
		}
	}
	for code, roomID := range st.roomByCode {
		room, ok := st.rooms[roomID]
		if !ok || room.Code != code {
			return violation("room code %q points to missing room %q", code, roomID)
		}
	}
	for id := range st.sessions {
		if _, ok := st.players[id]; !ok {
			return violation("session for %q has no profile", id)
		}
	}

	for matchID, match := range st.matches {
		if match.ID != matchID {
			return violation("match %q is stored under id %q", match.ID, matchID)
		}
		room, ok := st.rooms[match.RoomID]
		if !ok {
			return violation("match %q points to missing room %q", matchID, match.RoomID)
		}
		if err := validateMatchLifecycle(match); err != nil {
			return err
		}
		if !match.IsActive() {
			continue
		}
		if room.CurrentMatchID == nil || *room.CurrentMatchID != matchID {
			return violation("active match %q is not the current match of room %q", matchID, room.ID)
		}
		for id := range match.Players {
			if !room.HasMember(id) {
				return violation("match %q has player %q outside room", matchID, id)
			}
		}
	}
	return nil
}

func validateReadyCheck(room *model.Room) error {
	check := room.ReadyCheck
	if check == nil {
		return nil
	}
	if !check.ExpiresAt.After(check.StartedAt) {
		return violation("room %q ready check expiration is invalid", room.ID)
	}
	if !room.HasMember(check.InitiatedBy) {
		return violation("room %q ready check initiator is not in room", room.ID)
	}
	for id, response := range check.Responses {
		if !room.HasMember(id) {
			return violation("room %q ready check has response from player outside room", room.ID)
		}
		if response.RespondedAt.Before(check.StartedAt) || response.RespondedAt.After(check.ExpiresAt) {
			return violation("room %q ready check response timestamp is out of bounds", room.ID)
		}
	}
	return nil
}

func validateCurrentMatch(st *state, room *model.Room) error {
	if room.CurrentMatchID == nil {
		return nil
	}
	match, ok := st.matches[*room.CurrentMatchID]
	if !ok {
		return violation("room %q points to missing match %q", room.ID, *room.CurrentMatchID)
	}
	if match.RoomID != room.ID {
		return violation("match %q points to wrong room", match.ID)
	}
	if !match.IsActive() {
		return violation("room %q references inactive match %q", room.ID, match.ID)
	}
	for id := range match.Players {
		if !room.HasMember(id) {
			return violation("match %q has player %q outside room", match.ID, id)
		}
	}
	return nil
}

func validateMatchLifecycle(match *model.Match) error {
	switch match.Lifecycle {
	case model.MatchActive:
		if match.CompletedAt != nil {
			return violation("active match %q has completedAt", match.ID)
		}
	case model.MatchCompleted:
		if match.CompletedAt == nil {
			return violation("completed match %q has no completedAt", match.ID)
		}
	default:
		return violation("match %q has unknown lifecycle %q", match.ID, match.Lifecycle)
	}

	for id, ps := range match.Players {
		switch v := ps.(type) {
		case model.Running, model.Dead:
		case model.Finished:
			if v.Result.RTTMs < 0 || v.Result.IGTMs < 0 {
				return violation("match %q player %q has a negative result", match.ID, id)
			}
		case model.Left:
			if v.At.IsZero() {
				return violation("match %q player %q left without a timestamp", match.ID, id)
			}
			if _, ok := model.ParseLeaveReason(string(v.Reason)); !ok {
				return violation("match %q player %q has unknown leave reason %q", match.ID, id, v.Reason)
			}
		default:
			return violation("match %q player %q has unknown state %T", match.ID, id, ps)
		}
	}
	return nil
}

func violation(format string, args ...any) error {
	return model.ErrInvariantViolation.Withf(format, args...)
}
