package race

import (
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// liveState builds a room with a running match plus a second idle room and
// returns a private copy of the resulting state
func (s *ServiceSuite) liveState() *state {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	s.roomOf("XYZ789", "carol", "dave")

	s.service.mu.Lock()
	defer s.service.mu.Unlock()
	return s.service.st.clone()
}

func roomByCode(st *state, code string) *model.Room {
	return st.rooms[st.roomByCode[model.RoomCode(code)]]
}

func (s *ServiceSuite) TestValidateAcceptsLiveState() {
	s.NoError(validate(s.liveState()))
}

func (s *ServiceSuite) TestValidateRejectsBrokenState() {
	base := s.liveState()

	cases := map[string]func(st *state){
		"empty room": func(st *state) {
			room := roomByCode(st, "XYZ789")
			room.Players = nil
		},
		"leader outside room": func(st *state) {
			roomByCode(st, "XYZ789").LeaderID = "alice"
		},
		"leader pending removal": func(st *state) {
			room := roomByCode(st, "ABC123")
			room.MarkPendingRemoval(room.LeaderID)
		},
		"unindexed code": func(st *state) {
			delete(st.roomByCode, "XYZ789")
		},
		"current and pending match": func(st *state) {
			roomByCode(st, "ABC123").PendingMatch = &model.PendingMatchConfig{TargetItem: "minecraft:beacon", Revision: 9}
		},
		"ready check during match": func(st *state) {
			roomByCode(st, "ABC123").ReadyCheck = model.NewReadyCheck("alice", testStart)
		},
		"player in two rooms": func(st *state) {
			room := roomByCode(st, "XYZ789")
			room.Players = append(room.Players, "alice")
		},
		"pending removal outside room": func(st *state) {
			room := roomByCode(st, "XYZ789")
			room.PendingRemovals = append(room.PendingRemovals, "alice")
		},
		"ready check from outsider": func(st *state) {
			check := model.NewReadyCheck("carol", testStart)
			check.Responses["alice"] = model.ReadyResponse{Status: model.ReadyStatusReady, RespondedAt: testStart}
			roomByCode(st, "XYZ789").ReadyCheck = check
		},
		"ready response after expiry": func(st *state) {
			check := model.NewReadyCheck("carol", testStart)
			check.Responses["dave"] = model.ReadyResponse{Status: model.ReadyStatusReady, RespondedAt: testStart.Add(time.Minute)}
			roomByCode(st, "XYZ789").ReadyCheck = check
		},
		"stale player index": func(st *state) {
			st.roomByPlayer["carol"] = roomByCode(st, "ABC123").ID
		},
		"session without profile": func(st *state) {
			delete(st.players, "carol")
			roomByCode(st, "XYZ789").Players = []model.PlayerID{"dave"}
			roomByCode(st, "XYZ789").LeaderID = "dave"
			delete(st.roomByPlayer, "carol")
		},
		"match player outside room": func(st *state) {
			match := st.matches[*roomByCode(st, "ABC123").CurrentMatchID]
			match.Players["carol"] = model.Running{}
		},
		"negative result": func(st *state) {
			match := st.matches[*roomByCode(st, "ABC123").CurrentMatchID]
			match.Players["bob"] = model.Finished{Result: model.PlayerResult{RTTMs: -1, IGTMs: 10}}
		},
		"leave without time": func(st *state) {
			match := st.matches[*roomByCode(st, "ABC123").CurrentMatchID]
			match.Players["bob"] = model.Left{Reason: model.LeaveManual}
		},
		"active match with completion time": func(st *state) {
			match := st.matches[*roomByCode(st, "ABC123").CurrentMatchID]
			done := testStart
			match.CompletedAt = &done
		},
		"unreferenced active match": func(st *state) {
			room := roomByCode(st, "ABC123")
			room.CurrentMatchID = nil
			room.PendingMatch = &model.PendingMatchConfig{TargetItem: "minecraft:beacon", Revision: 9}
		},
		"stray match beside current one": func(st *state) {
			current := st.matches[*roomByCode(st, "ABC123").CurrentMatchID]
			stray := current.Clone()
			stray.ID = "stray"
			stray.Players = map[model.PlayerID]model.PlayerState{"zed": model.Running{}}
			st.matches[stray.ID] = stray
		},
		"room points at missing match": func(st *state) {
			missing := model.MatchID("nope")
			roomByCode(st, "ABC123").CurrentMatchID = &missing
		},
	}

	for name, corrupt := range cases {
		s.Run(name, func() {
			st := base.clone()
			corrupt(st)
			s.ErrorIs(validate(st), model.ErrInvariantViolation)
		})
	}
}

func (s *ServiceSuite) TestInvariantBreakRollsBack() {
	s.roomOf("ABC123", "alice", "bob")
	saves := s.store.SaveCount()

	err := s.service.mutate(s.ctx, "test", func(st *state, _ time.Time) error {
		roomByCode(st, "ABC123").LeaderID = "nobody"
		return nil
	})
	s.ErrorIs(err, model.ErrInvariantViolation)

	s.Equal(model.PlayerID("alice"), s.snapshot("bob").Room.LeaderID)
	s.Equal(saves, s.store.SaveCount())
}
