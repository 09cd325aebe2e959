package race

import (
	"maps"

	"github.com/mcoot/racecoord/internal/model"
)

// state is the arena of everything the service owns. The reverse indices
// roomByCode and roomByPlayer are always derivable from rooms.
type state struct {
	players      map[model.PlayerID]*model.PlayerProfile
	sessions     map[model.PlayerID]*model.PlayerSession
	rooms        map[model.RoomID]*model.Room
	matches      map[model.MatchID]*model.Match
	roomByCode   map[model.RoomCode]model.RoomID
	roomByPlayer map[model.PlayerID]model.RoomID
}

func newState() *state {
	return &state{
		players:      make(map[model.PlayerID]*model.PlayerProfile),
		sessions:     make(map[model.PlayerID]*model.PlayerSession),
		rooms:        make(map[model.RoomID]*model.Room),
		matches:      make(map[model.MatchID]*model.Match),
		roomByCode:   make(map[model.RoomCode]model.RoomID),
		roomByPlayer: make(map[model.PlayerID]model.RoomID),
	}
}

// clone returns a deep copy used as a rollback checkpoint
func (st *state) clone() *state {
	c := &state{
		players:      make(map[model.PlayerID]*model.PlayerProfile, len(st.players)),
		sessions:     make(map[model.PlayerID]*model.PlayerSession, len(st.sessions)),
		rooms:        make(map[model.RoomID]*model.Room, len(st.rooms)),
		matches:      make(map[model.MatchID]*model.Match, len(st.matches)),
		roomByCode:   maps.Clone(st.roomByCode),
		roomByPlayer: maps.Clone(st.roomByPlayer),
	}
	for id, p := range st.players {
		cp := *p
		c.players[id] = &cp
	}
	for id, s := range st.sessions {
		cp := *s
		c.sessions[id] = &cp
	}
	for id, r := range st.rooms {
		c.rooms[id] = r.Clone()
	}
	for id, m := range st.matches {
		c.matches[id] = m.Clone()
	}
	return c
}

func (st *state) roomOf(playerID model.PlayerID) *model.Room {
	roomID, ok := st.roomByPlayer[playerID]
	if !ok {
		return nil
	}
	return st.rooms[roomID]
}

func (st *state) roomByCodeLookup(code model.RoomCode) *model.Room {
	roomID, ok := st.roomByCode[code]
	if !ok {
		return nil
	}
	return st.rooms[roomID]
}

// activeMatch returns the room's current match if it is still ACTIVE
func (st *state) activeMatch(room *model.Room) *model.Match {
	if room.CurrentMatchID == nil {
		return nil
	}
	m, ok := st.matches[*room.CurrentMatchID]
	if !ok || !m.IsActive() {
		return nil
	}
	return m
}

// roster returns the members of the player's room, or nil when roomless
func (st *state) roster(playerID model.PlayerID) []model.PlayerID {
	room := st.roomOf(playerID)
	if room == nil {
		return nil
	}
	return append([]model.PlayerID(nil), room.Players...)
}

func (st *state) connectionState(playerID model.PlayerID) model.ConnectionState {
	if sess, ok := st.sessions[playerID]; ok {
		return sess.State
	}
	return model.ConnectionDisconnected
}
