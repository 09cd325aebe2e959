package race

import (
	"context"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// SnapshotFor builds the state view sent to one player
func (s *Service) SnapshotFor(ctx context.Context, playerID model.PlayerID) (*model.RaceSnapshot, error) {
	var snapshot *model.RaceSnapshot
	err := s.read(ctx, func(st *state, now time.Time) error {
		profile, ok := st.players[playerID]
		if !ok {
			return model.ErrPlayerNotFound.Withf("player %q is not registered", playerID)
		}

		snapshot = &model.RaceSnapshot{
			ServerTimeMs:     toMs(now),
			ReconnectGraceMs: s.config.ReconnectGrace.Milliseconds(),
			Self: model.SelfView{
				PlayerID:        profile.ID,
				Name:            profile.Name,
				ConnectionState: st.connectionState(playerID),
			},
		}

		room := st.roomOf(playerID)
		if room == nil {
			return nil
		}
		code := room.Code
		snapshot.Self.RoomCode = &code

		view, err := roomView(st, room)
		if err != nil {
			return err
		}
		snapshot.Room = view
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func roomView(st *state, room *model.Room) (*model.RoomView, error) {
	view := &model.RoomView{
		Code:     room.Code,
		LeaderID: room.LeaderID,
		Players:  make([]model.RoomPlayerView, 0, len(room.Players)),
	}
	for _, id := range room.Players {
		profile, ok := st.players[id]
		if !ok {
			return nil, model.ErrInvariantViolation.Withf("player profile missing for %q", id)
		}
		view.Players = append(view.Players, model.RoomPlayerView{
			PlayerID:        id,
			Name:            profile.Name,
			ConnectionState: st.connectionState(id),
			PendingRemoval:  room.IsPendingRemoval(id),
		})
	}

	if p := room.PendingMatch; p != nil {
		view.PendingMatch = &model.PendingMatchView{
			Revision:   p.Revision,
			TargetItem: p.TargetItem,
			Seed:       p.Seed,
			RolledAtMs: toMs(p.RolledAt),
		}
	}
	if room.CurrentMatchID != nil {
		if m, ok := st.matches[*room.CurrentMatchID]; ok {
			view.CurrentMatch = matchView(m, room.Players)
		}
	}
	if c := room.ReadyCheck; c != nil {
		rc := &model.ReadyCheckView{
			InitiatedBy: c.InitiatedBy,
			StartedAtMs: toMs(c.StartedAt),
			ExpiresAtMs: toMs(c.ExpiresAt),
			Responses:   make([]model.ReadyCheckResponseView, 0, len(c.Responses)),
		}
		for _, id := range sortedKeys(c.Responses) {
			resp := c.Responses[id]
			rc.Responses = append(rc.Responses, model.ReadyCheckResponseView{
				PlayerID:      id,
				Status:        resp.Status,
				RespondedAtMs: toMs(resp.RespondedAt),
			})
		}
		view.ReadyCheck = rc
	}
	return view, nil
}

// matchView lists participants in room order, followed by any participant
// no longer in the room.
func matchView(m *model.Match, roomOrder []model.PlayerID) *model.MatchView {
	view := &model.MatchView{
		ID:            m.ID,
		Revision:      m.Revision,
		TargetItem:    m.TargetItem,
		Seed:          m.Seed,
		IsActive:      m.IsActive(),
		CreatedAtMs:   toMs(m.CreatedAt),
		UpdatedAtMs:   toMs(m.UpdatedAt),
		CompletedAtMs: optMs(m.CompletedAt),
		Players:       make([]model.MatchPlayerView, 0, len(m.Players)),
	}

	order := make([]model.PlayerID, 0, len(m.Players))
	listed := make(map[model.PlayerID]bool, len(m.Players))
	for _, id := range roomOrder {
		if _, ok := m.Players[id]; ok {
			order = append(order, id)
			listed[id] = true
		}
	}
	for _, id := range sortedKeys(m.Players) {
		if !listed[id] {
			order = append(order, id)
		}
	}

	for _, id := range order {
		pv := model.MatchPlayerView{PlayerID: id, Status: m.Players[id].Status()}
		switch v := m.Players[id].(type) {
		case model.Finished:
			result := v.Result
			pv.Result = &result
		case model.Left:
			reason := v.Reason
			at := toMs(v.At)
			pv.LeaveReason = &reason
			pv.LeftAtMs = &at
		}
		view.Players = append(view.Players, pv)
	}
	return view
}
