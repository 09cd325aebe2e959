package race

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcoot/racecoord/internal/model"
)

// RollMatch draws a new seed and target item for the leader's room,
// replacing any configuration rolled before.
func (s *Service) RollMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "roll_match", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		if err := requireLeader(room, playerID); err != nil {
			return err
		}
		if st.activeMatch(room) != nil {
			return model.ErrMatchAlreadyActive
		}

		seed := s.random.Int63()
		item, err := s.pickTargetItem(seed)
		if err != nil {
			return err
		}

		room.ReadyCheck = nil
		room.RevisionCounter++
		room.PendingMatch = &model.PendingMatchConfig{
			TargetItem: item,
			Seed:       seed,
			RolledAt:   now,
			Revision:   room.RevisionCounter,
		}

		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	return out, err
}

// StartMatch turns the rolled configuration into a match with every member RUNNING
func (s *Service) StartMatch(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var (
		out     []model.PlayerID
		matchID model.MatchID
	)
	err := s.mutate(ctx, "start_match", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		if err := requireLeader(room, playerID); err != nil {
			return err
		}
		if st.activeMatch(room) != nil {
			return model.ErrMatchAlreadyActive
		}
		pending := room.PendingMatch
		if pending == nil {
			return model.ErrPendingMatchMissing
		}
		if len(room.Players) == 0 {
			return model.ErrEmptyRoom
		}

		match := &model.Match{
			ID:         model.MatchID(s.ids.NewID()),
			RoomID:     room.ID,
			Revision:   pending.Revision,
			TargetItem: pending.TargetItem,
			Seed:       pending.Seed,
			Lifecycle:  model.MatchActive,
			Players:    make(map[model.PlayerID]model.PlayerState, len(room.Players)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, id := range room.Players {
			match.Players[id] = model.Running{}
		}

		st.matches[match.ID] = match
		id := match.ID
		room.CurrentMatchID = &id
		room.PendingMatch = nil
		room.ReadyCheck = nil
		room.PendingRemovals = nil

		matchID = match.ID
		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("match started", slog.String("match_id", string(matchID)), slog.Int("players", len(out)))
	return out, nil
}

// CancelStart aborts a match nobody has progressed in, restoring its
// configuration as the pending one.
func (s *Service) CancelStart(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "cancel_start", func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		if err := requireLeader(room, playerID); err != nil {
			return err
		}
		match := st.activeMatch(room)
		if match == nil {
			return model.ErrNoActiveMatch
		}
		if match.AnyProgressed() {
			return model.ErrInvalidTransition.Withf("cannot cancel start after match progress")
		}

		restorePending(st, room, match, now)
		out = append([]model.PlayerID(nil), room.Players...)
		return nil
	})
	return out, err
}

// restorePending discards the active match and makes its configuration the
// room's pending one again. Players who left during the match go now.
func restorePending(st *state, room *model.Room, match *model.Match, now time.Time) {
	room.CurrentMatchID = nil
	room.ReadyCheck = nil
	room.PendingMatch = &model.PendingMatchConfig{
		TargetItem: match.TargetItem,
		Seed:       match.Seed,
		RolledAt:   now,
		Revision:   match.Revision,
	}
	delete(st.matches, match.ID)
	applyPendingRemovals(st, room)
}

// Finish records the player's result in the active match
func (s *Service) Finish(ctx context.Context, playerID model.PlayerID, rttMs, igtMs int64) ([]model.PlayerID, error) {
	result := model.PlayerResult{RTTMs: rttMs, IGTMs: igtMs}
	return s.transition(ctx, "finish", playerID, model.Finished{Result: result})
}

// ReportDeath marks the player dead in the active match
func (s *Service) ReportDeath(ctx context.Context, playerID model.PlayerID) ([]model.PlayerID, error) {
	return s.transition(ctx, "death", playerID, model.Dead{})
}

func (s *Service) transition(ctx context.Context, op string, playerID model.PlayerID, next model.PlayerState) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, op, func(st *state, now time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		match := st.activeMatch(room)
		if match == nil {
			return model.ErrNoActiveMatch
		}
		current, ok := match.Players[playerID]
		if !ok {
			return model.ErrInvariantViolation.Withf("player %q in room %q is absent from match %q", playerID, room.ID, match.ID)
		}
		// results are only judged once the transition itself is allowed
		if finished, ok := next.(model.Finished); ok && current.Status() == model.StatusRunning {
			if finished.Result.RTTMs < 0 || finished.Result.IGTMs < 0 {
				return model.ErrInvalidResult
			}
		}
		if err := match.Transition(playerID, next, now); err != nil {
			return err
		}

		out = affected(room.Players, []model.PlayerID{playerID})
		completeMatchIfNeeded(st, room, match, now)
		return nil
	})
	return out, err
}

// ReportAdvancement validates an advancement and returns who should hear
// about it. Nothing is stored.
func (s *Service) ReportAdvancement(ctx context.Context, playerID model.PlayerID, rawID string) (*model.AdvancementBroadcast, error) {
	advancementID := strings.TrimSpace(rawID)
	if advancementID == "" {
		return nil, model.ErrInvalidAdvancement.Withf("advancement id must be non-empty")
	}
	if utf8.RuneCountInString(advancementID) > MaxAdvancementLength {
		return nil, model.ErrInvalidAdvancement.Withf("advancement id is too long")
	}

	var broadcast *model.AdvancementBroadcast
	err := s.read(ctx, func(st *state, _ time.Time) error {
		room := st.roomOf(playerID)
		if room == nil {
			return model.ErrPlayerNotInRoom
		}
		match := st.activeMatch(room)
		if match == nil {
			return model.ErrNoActiveMatch
		}
		current, ok := match.Players[playerID]
		if !ok {
			return model.ErrInvariantViolation.Withf("player %q in room %q is absent from match %q", playerID, room.ID, match.ID)
		}
		if current.Status() != model.StatusRunning {
			return model.ErrPlayerNotRunning
		}
		profile, ok := st.players[playerID]
		if !ok {
			return model.ErrInvariantViolation.Withf("player profile missing for %q", playerID)
		}

		broadcast = &model.AdvancementBroadcast{
			PlayerID:      playerID,
			PlayerName:    profile.Name,
			AdvancementID: advancementID,
			Recipients:    append([]model.PlayerID(nil), room.Players...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return broadcast, nil
}

// completeMatchIfNeeded closes the match once every participant is terminal.
// Calling it again after completion does nothing.
func completeMatchIfNeeded(st *state, room *model.Room, match *model.Match, now time.Time) {
	if !match.IsActive() || !match.AllTerminal() {
		return
	}
	match.Complete(now)
	room.CurrentMatchID = nil
	delete(st.matches, match.ID)
	applyPendingRemovals(st, room)
}

func applyPendingRemovals(st *state, room *model.Room) {
	if len(room.PendingRemovals) == 0 {
		return
	}
	removals := room.PendingRemovals
	room.PendingRemovals = nil
	for _, id := range removals {
		removePlayerFromRoom(st, room, id)
	}
}

// pickTargetItem selects an item deterministically from the seed, so the
// same seed always yields the same target for a given pool.
func (s *Service) pickTargetItem(seed int64) (string, error) {
	items := s.pool.Items()
	if len(items) == 0 {
		return "", model.ErrTargetPoolEmpty
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))
	return items[rng.IntN(len(items))], nil
}
