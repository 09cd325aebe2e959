package race

import (
	"strings"
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

// RollMatch tests

func (s *ServiceSuite) TestRollMatchSetsPendingConfig() {
	s.roomOf("ABC123", "alice", "bob")
	s.random.QueueInt63(42)

	affected, err := s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	pending := s.snapshot("bob").Room.PendingMatch
	s.Require().NotNil(pending)
	s.Equal(int64(42), pending.Seed)
	s.Equal(1, pending.Revision)
	s.Contains(testItems, pending.TargetItem)
	s.Equal(testStart.UnixMilli(), pending.RolledAtMs)
}

func (s *ServiceSuite) TestRollMatchIsDeterministicPerSeed() {
	s.roomOf("ABC123", "alice")
	s.random.QueueInt63(987654321, 987654321)

	_, err := s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	first := s.snapshot("alice").Room.PendingMatch

	_, err = s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	second := s.snapshot("alice").Room.PendingMatch

	s.Equal(first.TargetItem, second.TargetItem)
	s.Equal(2, second.Revision)
}

func (s *ServiceSuite) TestRollMatchClearsReadyCheck() {
	s.roomOf("ABC123", "alice", "bob")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)

	s.Nil(s.snapshot("alice").Room.ReadyCheck)
}

func (s *ServiceSuite) TestRollMatchWithEmptyPoolFails() {
	s.roomOf("ABC123", "alice")
	s.service.pool = emptyPool{}

	_, err := s.service.RollMatch(s.ctx, "alice")
	s.ErrorIs(err, model.ErrTargetPoolEmpty)
	s.Nil(s.snapshot("alice").Room.PendingMatch)
}

func (s *ServiceSuite) TestRollMatchWhileActiveFails() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	_, err := s.service.RollMatch(s.ctx, "alice")
	s.ErrorIs(err, model.ErrMatchAlreadyActive)
}

func (s *ServiceSuite) TestLeaderOnlyOperationsRejectOthers() {
	s.roomOf("ABC123", "alice", "bob")
	s.random.QueueInt63(7)
	_, err := s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	before := s.snapshot("alice")
	saves := s.store.SaveCount()

	_, err = s.service.RollMatch(s.ctx, "bob")
	s.ErrorIs(err, model.ErrNotRoomLeader)
	_, err = s.service.StartMatch(s.ctx, "bob")
	s.ErrorIs(err, model.ErrNotRoomLeader)
	_, err = s.service.StartReadyCheck(s.ctx, "bob")
	s.ErrorIs(err, model.ErrNotRoomLeader)

	_, err = s.service.StartMatch(s.ctx, "alice")
	s.Require().NoError(err)
	running := s.snapshot("alice")
	saves++

	_, err = s.service.CancelStart(s.ctx, "bob")
	s.ErrorIs(err, model.ErrNotRoomLeader)

	s.Equal(saves, s.store.SaveCount())
	s.Equal(before.Room.PendingMatch.Seed, running.Room.CurrentMatch.Seed)
	s.Equal(running, s.snapshot("alice"))
}

// StartMatch tests

func (s *ServiceSuite) TestStartMatchSnapshotsMembership() {
	s.roomOf("ABC123", "alice", "bob")
	s.random.QueueInt63(42)
	_, err := s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	pending := s.snapshot("alice").Room.PendingMatch

	s.ids.QueueIDs("match-1")
	affected, err := s.service.StartMatch(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	room := s.snapshot("bob").Room
	s.Nil(room.PendingMatch)
	s.Nil(room.ReadyCheck)
	match := room.CurrentMatch
	s.Require().NotNil(match)
	s.Equal(model.MatchID("match-1"), match.ID)
	s.True(match.IsActive)
	s.Equal(pending.Seed, match.Seed)
	s.Equal(pending.TargetItem, match.TargetItem)
	s.Equal(pending.Revision, match.Revision)
	s.Nil(match.CompletedAtMs)
	s.Require().Len(match.Players, 2)
	s.Equal(model.PlayerID("alice"), match.Players[0].PlayerID)
	s.Equal(model.PlayerID("bob"), match.Players[1].PlayerID)
	for _, p := range match.Players {
		s.Equal(model.StatusRunning, p.Status)
	}
}

func (s *ServiceSuite) TestStartMatchWithoutRollFails() {
	s.roomOf("ABC123", "alice")

	_, err := s.service.StartMatch(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPendingMatchMissing)
}

func (s *ServiceSuite) TestStartMatchTwiceFails() {
	s.roomOf("ABC123", "alice")
	s.startMatch("alice")

	_, err := s.service.StartMatch(s.ctx, "alice")
	s.ErrorIs(err, model.ErrMatchAlreadyActive)
}

// CancelStart tests

func (s *ServiceSuite) TestCancelStartRestoresPendingConfig() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	match := s.snapshot("alice").Room.CurrentMatch
	s.clock.Advance(5 * time.Second)

	_, err := s.service.CancelStart(s.ctx, "alice")
	s.Require().NoError(err)

	room := s.snapshot("alice").Room
	s.Nil(room.CurrentMatch)
	s.Require().NotNil(room.PendingMatch)
	s.Equal(match.Seed, room.PendingMatch.Seed)
	s.Equal(match.TargetItem, room.PendingMatch.TargetItem)
	s.Equal(match.Revision, room.PendingMatch.Revision)
	s.Equal(s.clock.Now().UnixMilli(), room.PendingMatch.RolledAtMs)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.ActiveMatches)
}

func (s *ServiceSuite) TestCancelStartAfterProgressFails() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.service.CancelStart(s.ctx, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
	s.NotNil(s.snapshot("alice").Room.CurrentMatch)
}

func (s *ServiceSuite) TestCancelStartWithoutMatchFails() {
	s.roomOf("ABC123", "alice")

	_, err := s.service.CancelStart(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNoActiveMatch)
}

// Finish, death and completion tests

func (s *ServiceSuite) TestFinishRecordsResult() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	affected, err := s.service.Finish(s.ctx, "alice", 1200, 1100)
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	alice := s.matchStatus("bob", "alice")
	s.Equal(model.StatusFinished, alice.Status)
	s.Require().NotNil(alice.Result)
	s.Equal(model.PlayerResult{RTTMs: 1200, IGTMs: 1100}, *alice.Result)
}

func (s *ServiceSuite) TestFinishRejectsNegativeTimes() {
	s.roomOf("ABC123", "alice")
	s.startMatch("alice")

	_, err := s.service.Finish(s.ctx, "alice", -1, 100)
	s.ErrorIs(err, model.ErrInvalidResult)
	_, err = s.service.Finish(s.ctx, "alice", 100, -1)
	s.ErrorIs(err, model.ErrInvalidResult)
	s.Equal(model.StatusRunning, s.matchStatus("alice", "alice").Status)
}

func (s *ServiceSuite) TestFinishPreconditionsComeBeforeResultCheck() {
	s.connect("zed")
	_, err := s.service.Finish(s.ctx, "zed", -1, -1)
	s.ErrorIs(err, model.ErrPlayerNotInRoom)

	s.roomOf("ABC123", "alice", "bob")
	_, err = s.service.Finish(s.ctx, "alice", -1, -1)
	s.ErrorIs(err, model.ErrNoActiveMatch)

	s.startMatch("alice")
	_, err = s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)
	_, err = s.service.Finish(s.ctx, "bob", -1, -1)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ServiceSuite) TestTerminalStatusCannotChange() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	_, err := s.service.Finish(s.ctx, "alice", 1200, 1100)
	s.Require().NoError(err)

	_, err = s.service.ReportDeath(s.ctx, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
	_, err = s.service.Finish(s.ctx, "alice", 1, 1)
	s.ErrorIs(err, model.ErrInvalidTransition)

	s.Equal(model.StatusFinished, s.matchStatus("bob", "alice").Status)
}

func (s *ServiceSuite) TestFinishWithoutMatchFails() {
	s.roomOf("ABC123", "alice")
	_, err := s.service.Finish(s.ctx, "alice", 1, 1)
	s.ErrorIs(err, model.ErrNoActiveMatch)

	s.connect("bob")
	_, err = s.service.ReportDeath(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotInRoom)
}

func (s *ServiceSuite) TestMatchCompletesOnlyWhenAllTerminal() {
	s.roomOf("ABC123", "alice", "bob", "carol")
	s.startMatch("alice")

	_, err := s.service.Finish(s.ctx, "alice", 1000, 900)
	s.Require().NoError(err)
	s.NotNil(s.snapshot("alice").Room.CurrentMatch)

	_, err = s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)
	s.NotNil(s.snapshot("alice").Room.CurrentMatch)

	_, err = s.service.LeaveMatch(s.ctx, "carol")
	s.Require().NoError(err)
	room := s.snapshot("alice").Room
	s.Nil(room.CurrentMatch)
	s.Nil(room.PendingMatch)
	s.Len(room.Players, 3)
}

func (s *ServiceSuite) TestCompletionIsIdempotent() {
	st := newState()
	matchID := model.MatchID("match-1")
	room := &model.Room{ID: "room-1", Code: "ABC123", Players: ids("alice"), LeaderID: "alice", CurrentMatchID: &matchID}
	match := &model.Match{
		ID:        matchID,
		RoomID:    room.ID,
		Lifecycle: model.MatchActive,
		Players:   map[model.PlayerID]model.PlayerState{"alice": model.Running{}},
	}
	st.rooms[room.ID] = room
	st.matches[matchID] = match

	completeMatchIfNeeded(st, room, match, testStart)
	s.True(match.IsActive())

	s.Require().NoError(match.Transition("alice", model.Dead{}, testStart))
	completeMatchIfNeeded(st, room, match, testStart)
	s.Equal(model.MatchCompleted, match.Lifecycle)
	s.Equal(testStart, *match.CompletedAt)
	s.Nil(room.CurrentMatchID)
	s.NotContains(st.matches, matchID)

	completeMatchIfNeeded(st, room, match, testStart.Add(time.Hour))
	s.Equal(testStart, *match.CompletedAt)
	s.Equal(model.MatchCompleted, match.Lifecycle)
}

func (s *ServiceSuite) TestNewMatchAfterCompletion() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "alice")
	s.Require().NoError(err)
	_, err = s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)

	s.startMatch("alice")
	room := s.snapshot("alice").Room
	s.Equal(2, room.CurrentMatch.Revision)
}

// ReportAdvancement tests

func (s *ServiceSuite) TestReportAdvancementReturnsRecipients() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	saves := s.store.SaveCount()

	broadcast, err := s.service.ReportAdvancement(s.ctx, "bob", "  minecraft:story/mine_stone ")
	s.Require().NoError(err)

	s.Equal(model.PlayerID("bob"), broadcast.PlayerID)
	s.Equal("Player bob", broadcast.PlayerName)
	s.Equal("minecraft:story/mine_stone", broadcast.AdvancementID)
	s.Equal(ids("alice", "bob"), broadcast.Recipients)
	s.Equal(saves, s.store.SaveCount())
}

func (s *ServiceSuite) TestReportAdvancementValidation() {
	s.roomOf("ABC123", "alice", "bob")

	_, err := s.service.ReportAdvancement(s.ctx, "bob", "   ")
	s.ErrorIs(err, model.ErrInvalidAdvancement)
	_, err = s.service.ReportAdvancement(s.ctx, "bob", strings.Repeat("a", MaxAdvancementLength+1))
	s.ErrorIs(err, model.ErrInvalidAdvancement)

	_, err = s.service.ReportAdvancement(s.ctx, "bob", "minecraft:story/root")
	s.ErrorIs(err, model.ErrNoActiveMatch)

	s.startMatch("alice")
	_, err = s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)
	_, err = s.service.ReportAdvancement(s.ctx, "bob", "minecraft:story/mine_stone")
	s.ErrorIs(err, model.ErrPlayerNotRunning)
}

// emptyPool is a target pool with nothing in it
type emptyPool struct{}

func (emptyPool) Items() []string { return nil }
