package race

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// HandleReconnectTimeout applies the consequences of a session that stayed
// disconnected for the whole grace period. It does nothing when the session
// was replaced, has reconnected, or the grace period has not yet elapsed.
func (s *Service) HandleReconnectTimeout(ctx context.Context, playerID model.PlayerID, sessionID model.SessionID) ([]model.PlayerID, error) {
	var out []model.PlayerID
	err := s.mutate(ctx, "reconnect_timeout", func(st *state, now time.Time) error {
		sess, ok := st.sessions[playerID]
		if !ok || sess.SessionID != sessionID || sess.IsConnected() || sess.DisconnectedAt.IsZero() {
			return errUnchanged
		}
		if now.Sub(sess.DisconnectedAt) < s.config.ReconnectGrace {
			return errUnchanged
		}

		var err error
		out, err = expireDisconnected(st, playerID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpiredSession is a connected session the heartbeat watchdog gave up on
type ExpiredSession struct {
	SessionRef
	Affected []model.PlayerID
}

// ExpireStaleSessions finds connected sessions silent for longer than the
// ping timeout. Each one leaves its room as a reconnect timeout and is marked
// DISCONNECTED, after which the normal grace period applies.
func (s *Service) ExpireStaleSessions(ctx context.Context) ([]ExpiredSession, error) {
	var candidates []SessionRef
	err := s.read(ctx, func(st *state, now time.Time) error {
		for _, id := range sortedKeys(st.sessions) {
			sess := st.sessions[id]
			if sess.IsConnected() && now.Sub(sess.LastSeenAt) >= s.config.PingTimeout {
				candidates = append(candidates, SessionRef{PlayerID: id, SessionID: sess.SessionID})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		expired []ExpiredSession
		errs    []error
	)
	for _, c := range candidates {
		var (
			result    *ExpiredSession
			silentFor time.Duration
		)
		err := s.mutate(ctx, "expire_stale_session", func(st *state, now time.Time) error {
			sess, ok := st.sessions[c.PlayerID]
			if !ok || sess.SessionID != c.SessionID || !sess.IsConnected() || now.Sub(sess.LastSeenAt) < s.config.PingTimeout {
				return errUnchanged
			}
			silentFor = now.Sub(sess.LastSeenAt)

			var out []model.PlayerID
			if room := st.roomOf(c.PlayerID); room != nil {
				out = affected(room.Players, []model.PlayerID{c.PlayerID})
				if err := leaveRoom(st, room, c.PlayerID, model.LeaveReconnectTimeout, now); err != nil {
					return err
				}
			}

			sess.State = model.ConnectionDisconnected
			sess.DisconnectedAt = now
			sess.LastSeenAt = now
			out = affected(out, st.roster(c.PlayerID), []model.PlayerID{c.PlayerID})

			result = &ExpiredSession{
				SessionRef: SessionRef{PlayerID: c.PlayerID, SessionID: c.SessionID, DisconnectedAt: now},
				Affected:   out,
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if result != nil {
			s.logger.Info("no heartbeat, forcing room leave",
				slog.String("player_id", string(c.PlayerID)),
				slog.Duration("silent_for", silentFor),
			)
			expired = append(expired, *result)
		}
	}
	return expired, errors.Join(errs...)
}

// EvictInactiveDisconnected applies reconnect-timeout consequences to every
// session that has been disconnected for longer than the ping timeout. It
// catches sessions whose grace timer was lost, such as across a restart.
func (s *Service) EvictInactiveDisconnected(ctx context.Context) ([]model.PlayerID, error) {
	var candidates []SessionRef
	err := s.read(ctx, func(st *state, now time.Time) error {
		for _, id := range sortedKeys(st.sessions) {
			sess := st.sessions[id]
			if !sess.IsConnected() && now.Sub(sess.DisconnectedAt) >= s.config.PingTimeout {
				candidates = append(candidates, SessionRef{PlayerID: id, SessionID: sess.SessionID, DisconnectedAt: sess.DisconnectedAt})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		out  []model.PlayerID
		errs []error
	)
	for _, c := range candidates {
		var evicted []model.PlayerID
		err := s.mutate(ctx, "evict_disconnected", func(st *state, now time.Time) error {
			sess, ok := st.sessions[c.PlayerID]
			if !ok || sess.SessionID != c.SessionID || sess.IsConnected() || now.Sub(sess.DisconnectedAt) < s.config.PingTimeout {
				return errUnchanged
			}
			if room := st.roomOf(c.PlayerID); room != nil && room.IsPendingRemoval(c.PlayerID) {
				// already on the way out; the match completing removes it
				return errUnchanged
			}
			var err error
			evicted, err = expireDisconnected(st, c.PlayerID, now)
			return err
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = affected(out, evicted)
	}
	return out, errors.Join(errs...)
}

// expireDisconnected removes a disconnected player for good: forgotten when
// roomless, removed from the room otherwise, or marked LEAVE when a match is
// running.
func expireDisconnected(st *state, playerID model.PlayerID, now time.Time) ([]model.PlayerID, error) {
	room := st.roomOf(playerID)
	if room == nil {
		delete(st.sessions, playerID)
		delete(st.players, playerID)
		return nil, nil
	}

	out := affected(room.Players, []model.PlayerID{playerID})
	if st.activeMatch(room) == nil {
		removePlayerFromRoom(st, room, playerID)
		return out, nil
	}
	if err := leaveRoom(st, room, playerID, model.LeaveReconnectTimeout, now); err != nil {
		return nil, err
	}
	return out, nil
}
