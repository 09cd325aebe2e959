package race

import (
	"context"
	"strings"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// ConnectResult is the outcome of authenticating a player
type ConnectResult struct {
	SessionID model.SessionID
	Resumed   bool
	Affected  []model.PlayerID
}

// Connect registers or updates the player and opens a session. The session
// is resumed only when requestedSessionID matches the player's current one.
func (s *Service) Connect(ctx context.Context, playerID model.PlayerID, name string, requestedSessionID model.SessionID) (*ConnectResult, error) {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(string(playerID)) == "" {
		return nil, model.ErrInvalidPlayer.Withf("playerId must be non-empty")
	}
	if name == "" {
		return nil, model.ErrInvalidPlayer.Withf("name must be non-empty")
	}

	var result ConnectResult
	err := s.mutate(ctx, "connect", func(st *state, now time.Time) error {
		if profile, ok := st.players[playerID]; ok {
			profile.Name = name
			profile.LastSeenAt = now
		} else {
			st.players[playerID] = &model.PlayerProfile{
				ID:         playerID,
				Name:       name,
				CreatedAt:  now,
				LastSeenAt: now,
			}
		}

		existing, ok := st.sessions[playerID]
		resumed := requestedSessionID != "" && ok && existing.SessionID == requestedSessionID
		sessionID := requestedSessionID
		if !resumed {
			sessionID = model.SessionID(s.ids.NewID())
		}

		st.sessions[playerID] = &model.PlayerSession{
			SessionID:  sessionID,
			State:      model.ConnectionConnected,
			LastSeenAt: now,
		}

		result = ConnectResult{
			SessionID: sessionID,
			Resumed:   resumed,
			Affected:  affected(st.roster(playerID), []model.PlayerID{playerID}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Disconnect marks the session DISCONNECTED. Room and match state are left
// untouched; the reconnect grace period decides what happens next. Stale or
// already disconnected sessions are ignored.
func (s *Service) Disconnect(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "disconnect", func(st *state, now time.Time) error {
		sess, ok := st.sessions[playerID]
		if !ok || sess.SessionID != sessionID || !sess.IsConnected() {
			return errUnchanged
		}
		sess.State = model.ConnectionDisconnected
		sess.DisconnectedAt = now
		sess.LastSeenAt = now
		if profile, ok := st.players[playerID]; ok {
			profile.LastSeenAt = now
		}
		out = affected(st.roster(playerID), []model.PlayerID{playerID})
		return nil
	})
	return out, err
}

// TouchHeartbeat records activity on the current session. It is not saved on
// its own; the next mutation carries it.
func (s *Service) TouchHeartbeat(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) error {
	return s.read(ctx, func(st *state, now time.Time) error {
		sess, ok := st.sessions[playerID]
		if !ok || sess.SessionID != sessionID {
			return nil
		}
		sess.LastSeenAt = now
		if profile, ok := st.players[playerID]; ok {
			profile.LastSeenAt = now
		}
		return nil
	})
}

// SessionRef names one player session
type SessionRef struct {
	PlayerID       model.PlayerID
	SessionID      model.SessionID
	DisconnectedAt time.Time
}

// DisconnectedSessions lists every session currently waiting out its grace
// period, sorted by player id.
func (s *Service) DisconnectedSessions(ctx context.Context) ([]SessionRef, error) {
	var out []SessionRef
	err := s.read(ctx, func(st *state, _ time.Time) error {
		for _, id := range sortedKeys(st.sessions) {
			sess := st.sessions[id]
			if sess.IsConnected() {
				continue
			}
			out = append(out, SessionRef{PlayerID: id, SessionID: sess.SessionID, DisconnectedAt: sess.DisconnectedAt})
		}
		return nil
	})
	return out, err
}
