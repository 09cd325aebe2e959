package race

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

func toMs(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optMs(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// exportState builds the persisted form of st. Every list is sorted by id so
// the same state always produces the same snapshot.
func exportState(st *state, now time.Time) *model.PersistedState {
	out := &model.PersistedState{
		SchemaVersion: model.SchemaVersion,
		SavedAtMs:     toMs(now),
		Players:       make([]model.PersistedPlayer, 0, len(st.players)),
		Rooms:         make([]model.PersistedRoom, 0, len(st.rooms)),
		Matches:       make([]model.PersistedMatch, 0, len(st.matches)),
	}

	for _, id := range sortedKeys(st.players) {
		p := st.players[id]
		pp := model.PersistedPlayer{
			ID:           string(p.ID),
			Name:         p.Name,
			CreatedAtMs:  toMs(p.CreatedAt),
			LastSeenAtMs: toMs(p.LastSeenAt),
		}
		if sess, ok := st.sessions[id]; ok {
			ps := &model.PersistedSession{
				SessionID:       string(sess.SessionID),
				ConnectionState: string(sess.State),
				LastSeenAtMs:    toMs(sess.LastSeenAt),
			}
			if !sess.DisconnectedAt.IsZero() {
				ms := toMs(sess.DisconnectedAt)
				ps.DisconnectedAtMs = &ms
			}
			pp.Session = ps
		}
		out.Players = append(out.Players, pp)
	}

	for _, id := range sortedKeys(st.rooms) {
		out.Rooms = append(out.Rooms, exportRoom(st.rooms[id]))
	}

	for _, id := range sortedKeys(st.matches) {
		m := st.matches[id]
		if !m.IsActive() {
			continue
		}
		out.Matches = append(out.Matches, exportMatch(m))
	}
	return out
}

func exportRoom(r *model.Room) model.PersistedRoom {
	pr := model.PersistedRoom{
		ID:              string(r.ID),
		Code:            string(r.Code),
		Players:         make([]string, 0, len(r.Players)),
		LeaderID:        string(r.LeaderID),
		RevisionCounter: r.RevisionCounter,
		PendingRemovals: make([]string, 0, len(r.PendingRemovals)),
	}
	for _, id := range r.Players {
		pr.Players = append(pr.Players, string(id))
	}
	for _, id := range r.PendingRemovals {
		pr.PendingRemovals = append(pr.PendingRemovals, string(id))
	}
	if r.CurrentMatchID != nil {
		id := string(*r.CurrentMatchID)
		pr.CurrentMatchID = &id
	}
	if p := r.PendingMatch; p != nil {
		pr.PendingMatch = &model.PersistedPendingMatch{
			TargetItem: p.TargetItem,
			Seed:       p.Seed,
			RolledAtMs: toMs(p.RolledAt),
			Revision:   p.Revision,
		}
	}
	if c := r.ReadyCheck; c != nil {
		rc := &model.PersistedReadyCheck{
			InitiatedBy: string(c.InitiatedBy),
			StartedAtMs: toMs(c.StartedAt),
			ExpiresAtMs: toMs(c.ExpiresAt),
			Responses:   make([]model.PersistedReadyResponse, 0, len(c.Responses)),
		}
		for _, id := range sortedKeys(c.Responses) {
			resp := c.Responses[id]
			rc.Responses = append(rc.Responses, model.PersistedReadyResponse{
				PlayerID:      string(id),
				Status:        string(resp.Status),
				RespondedAtMs: toMs(resp.RespondedAt),
			})
		}
		pr.ReadyCheck = rc
	}
	return pr
}

func exportMatch(m *model.Match) model.PersistedMatch {
	pm := model.PersistedMatch{
		ID:              string(m.ID),
		RoomID:          string(m.RoomID),
		Revision:        m.Revision,
		TargetItem:      m.TargetItem,
		Seed:            m.Seed,
		LifecycleStatus: string(m.Lifecycle),
		Players:         make([]model.PersistedPlayerState, 0, len(m.Players)),
		CreatedAtMs:     toMs(m.CreatedAt),
		UpdatedAtMs:     toMs(m.UpdatedAt),
		CompletedAtMs:   optMs(m.CompletedAt),
	}
	for _, id := range sortedKeys(m.Players) {
		ps := model.PersistedPlayerState{
			PlayerID: string(id),
			Status:   string(m.Players[id].Status()),
		}
		switch v := m.Players[id].(type) {
		case model.Finished:
			result := v.Result
			ps.Result = &result
		case model.Left:
			reason := string(v.Reason)
			at := toMs(v.At)
			ps.LeaveReason = &reason
			ps.LeftAtMs = &at
		}
		pm.Players = append(pm.Players, ps)
	}
	return pm
}

// importState rebuilds the in-memory state from a snapshot. Sessions that
// were connected when the snapshot was taken come back DISCONNECTED as of
// now, since no transport survives a restart.
func importState(in *model.PersistedState, now time.Time) (*state, error) {
	if in.SchemaVersion != model.SchemaVersion {
		return nil, corrupted("unsupported schema version %d", in.SchemaVersion)
	}
	st := newState()

	for _, pp := range in.Players {
		id := model.PlayerID(pp.ID)
		if id == "" {
			return nil, corrupted("player with empty id")
		}
		if _, dup := st.players[id]; dup {
			return nil, corrupted("duplicate player %q", id)
		}
		st.players[id] = &model.PlayerProfile{
			ID:         id,
			Name:       pp.Name,
			CreatedAt:  fromMs(pp.CreatedAtMs),
			LastSeenAt: fromMs(pp.LastSeenAtMs),
		}
		if pp.Session == nil {
			continue
		}
		connState, ok := model.ParseConnectionState(pp.Session.ConnectionState)
		if !ok {
			return nil, corrupted("player %q has unknown connection state %q", id, pp.Session.ConnectionState)
		}
		sess := &model.PlayerSession{
			SessionID:  model.SessionID(pp.Session.SessionID),
			State:      model.ConnectionDisconnected,
			LastSeenAt: fromMs(pp.Session.LastSeenAtMs),
		}
		switch {
		case connState == model.ConnectionConnected:
			sess.DisconnectedAt = now
		case pp.Session.DisconnectedAtMs != nil:
			sess.DisconnectedAt = fromMs(*pp.Session.DisconnectedAtMs)
		default:
			sess.DisconnectedAt = now
		}
		st.sessions[id] = sess
	}

	for _, pr := range in.Rooms {
		room, err := importRoom(st, pr)
		if err != nil {
			return nil, err
		}
		st.rooms[room.ID] = room
		st.roomByCode[room.Code] = room.ID
		for _, member := range room.Players {
			st.roomByPlayer[member] = room.ID
		}
	}

	for _, pm := range in.Matches {
		match, err := importMatch(st, pm)
		if err != nil {
			return nil, err
		}
		st.matches[match.ID] = match
	}

	for _, room := range st.rooms {
		if room.CurrentMatchID == nil {
			continue
		}
		if _, ok := st.matches[*room.CurrentMatchID]; !ok {
			return nil, corrupted("room %q references missing match %q", room.ID, *room.CurrentMatchID)
		}
	}
	for _, match := range st.matches {
		room := st.rooms[match.RoomID]
		if room.CurrentMatchID == nil || *room.CurrentMatchID != match.ID {
			return nil, corrupted("match %q is not the current match of room %q", match.ID, room.ID)
		}
		for id := range match.Players {
			if !room.HasMember(id) {
				return nil, corrupted("match %q has player %q outside room %q", match.ID, id, room.ID)
			}
		}
	}
	return st, nil
}

func importRoom(st *state, pr model.PersistedRoom) (*model.Room, error) {
	id := model.RoomID(pr.ID)
	if id == "" {
		return nil, corrupted("room with empty id")
	}
	if _, dup := st.rooms[id]; dup {
		return nil, corrupted("duplicate room %q", id)
	}
	code := model.RoomCode(pr.Code)
	if code == "" {
		return nil, corrupted("room %q has empty code", id)
	}
	if _, dup := st.roomByCode[code]; dup {
		return nil, corrupted("duplicate room code %q", code)
	}

	room := &model.Room{
		ID:              id,
		Code:            code,
		LeaderID:        model.PlayerID(pr.LeaderID),
		RevisionCounter: pr.RevisionCounter,
	}
	for _, raw := range pr.Players {
		member := model.PlayerID(raw)
		if _, ok := st.players[member]; !ok {
			return nil, corrupted("room %q member %q has no profile", id, member)
		}
		if other, taken := st.roomByPlayer[member]; taken {
			return nil, corrupted("player %q is in rooms %q and %q", member, other, id)
		}
		if room.HasMember(member) {
			return nil, corrupted("room %q lists %q twice", id, member)
		}
		room.Players = append(room.Players, member)
	}
	for _, raw := range pr.PendingRemovals {
		member := model.PlayerID(raw)
		if !room.HasMember(member) {
			return nil, corrupted("room %q pending removal %q is not a member", id, member)
		}
		room.MarkPendingRemoval(member)
	}
	if pr.CurrentMatchID != nil {
		matchID := model.MatchID(*pr.CurrentMatchID)
		room.CurrentMatchID = &matchID
	}
	if p := pr.PendingMatch; p != nil {
		room.PendingMatch = &model.PendingMatchConfig{
			TargetItem: p.TargetItem,
			Seed:       p.Seed,
			RolledAt:   fromMs(p.RolledAtMs),
			Revision:   p.Revision,
		}
	}
	if c := pr.ReadyCheck; c != nil {
		check := &model.ReadyCheck{
			InitiatedBy: model.PlayerID(c.InitiatedBy),
			StartedAt:   fromMs(c.StartedAtMs),
			ExpiresAt:   fromMs(c.ExpiresAtMs),
			Responses:   make(map[model.PlayerID]model.ReadyResponse, len(c.Responses)),
		}
		for _, resp := range c.Responses {
			status, ok := model.ParseReadyStatus(resp.Status)
			if !ok {
				return nil, corrupted("room %q ready check has unknown status %q", id, resp.Status)
			}
			check.Responses[model.PlayerID(resp.PlayerID)] = model.ReadyResponse{
				Status:      status,
				RespondedAt: fromMs(resp.RespondedAtMs),
			}
		}
		room.ReadyCheck = check
	}
	return room, nil
}

func importMatch(st *state, pm model.PersistedMatch) (*model.Match, error) {
	id := model.MatchID(pm.ID)
	if id == "" {
		return nil, corrupted("match with empty id")
	}
	if _, dup := st.matches[id]; dup {
		return nil, corrupted("duplicate match %q", id)
	}
	lifecycle, ok := model.ParseMatchLifecycle(pm.LifecycleStatus)
	if !ok {
		return nil, corrupted("match %q has unknown lifecycle %q", id, pm.LifecycleStatus)
	}
	if lifecycle != model.MatchActive {
		return nil, corrupted("match %q is not active", id)
	}
	roomID := model.RoomID(pm.RoomID)
	if _, ok := st.rooms[roomID]; !ok {
		return nil, corrupted("match %q points to missing room %q", id, roomID)
	}

	match := &model.Match{
		ID:         id,
		RoomID:     roomID,
		Revision:   pm.Revision,
		TargetItem: pm.TargetItem,
		Seed:       pm.Seed,
		Lifecycle:  lifecycle,
		Players:    make(map[model.PlayerID]model.PlayerState, len(pm.Players)),
		CreatedAt:  fromMs(pm.CreatedAtMs),
		UpdatedAt:  fromMs(pm.UpdatedAtMs),
	}
	if pm.CompletedAtMs != nil {
		t := fromMs(*pm.CompletedAtMs)
		match.CompletedAt = &t
	}

	for _, ps := range pm.Players {
		playerID := model.PlayerID(ps.PlayerID)
		if _, dup := match.Players[playerID]; dup {
			return nil, corrupted("match %q lists %q twice", id, playerID)
		}
		playerState, err := importPlayerState(id, ps)
		if err != nil {
			return nil, err
		}
		match.Players[playerID] = playerState
	}
	return match, nil
}

func importPlayerState(matchID model.MatchID, ps model.PersistedPlayerState) (model.PlayerState, error) {
	switch model.PlayerStatus(ps.Status) {
	case model.StatusRunning:
		return model.Running{}, nil
	case model.StatusFinished:
		if ps.Result == nil {
			return nil, corrupted("match %q player %q finished without a result", matchID, ps.PlayerID)
		}
		return model.Finished{Result: *ps.Result}, nil
	case model.StatusDeath:
		return model.Dead{}, nil
	case model.StatusLeave:
		if ps.LeaveReason == nil || ps.LeftAtMs == nil {
			return nil, corrupted("match %q player %q left without reason or time", matchID, ps.PlayerID)
		}
		reason, ok := model.ParseLeaveReason(*ps.LeaveReason)
		if !ok {
			return nil, corrupted("match %q player %q has unknown leave reason %q", matchID, ps.PlayerID, *ps.LeaveReason)
		}
		return model.Left{Reason: reason, At: fromMs(*ps.LeftAtMs)}, nil
	default:
		return nil, corrupted("match %q player %q has unknown status %q", matchID, ps.PlayerID, ps.Status)
	}
}

func corrupted(format string, args ...any) error {
	return model.ErrPersistenceCorrupted.Withf(format, args...)
}
