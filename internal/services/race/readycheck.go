package race

import (
	"context"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// StartReadyCheck opens a ready check in the leader's room, replacing any
// check already running.
func (s *Service) StartReadyCheck(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "ready_check", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		if err := requireLeader(room, playerID); err != nil {
			return err
		}
		if st.activeMatch(room) != nil {
			return model.ErrMatchAlreadyActive.Withf("cannot start ready check while match is active")
		}

		room.ReadyCheck = model.NewReadyCheck(playerID, now)
		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	return out, err
}

// RespondReadyCheck records the player's answer, overwriting an earlier one
func (s *Service) RespondReadyCheck(ctx context.Context, playerID model.PlayerID, ready bool) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "ready_check_response", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		if st.activeMatch(room) != nil {
			return model.ErrMatchAlreadyActive.Withf("ready check responses are disabled while match is active")
		}
		check := room.ReadyCheck
		if check == nil || check.IsExpired(now) {
			return model.ErrReadyCheckNotActive
		}

		status := model.ReadyStatusNotReady
		if ready {
			status = model.ReadyStatusReady
		}
		check.Responses[playerID] = model.ReadyResponse{Status: status, RespondedAt: now}

		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	return out, err
}

// pruneReadyChecks drops expired checks and responses from players who have
// since left the room.
func pruneReadyChecks(st *state, now time.Time) {
	for _, room := range st.rooms {
		check := room.ReadyCheck
		if check == nil {
			continue
		}
		if check.IsExpired(now) {
			room.ReadyCheck = nil
			continue
		}
		for id := range check.Responses {
			if !room.HasMember(id) {
				delete(check.Responses, id)
			}
		}
	}
}
