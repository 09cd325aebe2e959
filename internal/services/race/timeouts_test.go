package race

import (
	"time"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/testutil"
)

const grace = 45 * time.Second

func (s *ServiceSuite) TestDisconnectResumeThenTimeoutScenario() {
	s.ids.QueueIDs("sess-a")
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)

	// drop and come back inside the grace window
	_, err = s.service.Disconnect(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	s.clock.Advance(20 * time.Second)
	result, err := s.service.Connect(s.ctx, "alice", "Alice", "sess-a")
	s.Require().NoError(err)
	s.True(result.Resumed)
	s.Equal(model.StatusRunning, s.matchStatus("bob", "alice").Status)

	// the timer from the first disconnect fires late and must not act
	affected, err := s.service.HandleReconnectTimeout(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	s.Empty(affected)

	// drop again and let the grace window run out
	_, err = s.service.Disconnect(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	s.clock.Advance(grace)
	affected, err = s.service.HandleReconnectTimeout(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	room := s.snapshot("bob").Room
	s.Nil(room.CurrentMatch)
	s.Require().Len(room.Players, 1)
	s.Equal(model.PlayerID("bob"), room.Players[0].PlayerID)
	s.Equal(model.PlayerID("bob"), room.LeaderID)

	_, err = s.service.SnapshotFor(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestReconnectTimeoutDuringMatchMarksLeave() {
	s.ids.QueueIDs("sess-a")
	s.roomOf("ABC123", "alice", "bob", "carol")
	s.startMatch("alice")

	_, err := s.service.Disconnect(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	s.clock.Advance(grace)
	_, err = s.service.HandleReconnectTimeout(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)

	alice := s.matchStatus("bob", "alice")
	s.Equal(model.StatusLeave, alice.Status)
	s.Require().NotNil(alice.LeaveReason)
	s.Equal(model.LeaveReconnectTimeout, *alice.LeaveReason)

	room := s.snapshot("bob").Room
	s.True(room.Players[0].PendingRemoval)
	s.Equal(model.PlayerID("bob"), room.LeaderID)
	s.NotNil(room.CurrentMatch)
}

func (s *ServiceSuite) TestReconnectTimeoutBeforeGraceIsNoop() {
	session := s.connect("alice")
	_, err := s.service.Disconnect(s.ctx, "alice", session)
	s.Require().NoError(err)

	s.clock.Advance(grace - time.Millisecond)
	affected, err := s.service.HandleReconnectTimeout(s.ctx, "alice", session)
	s.Require().NoError(err)
	s.Empty(affected)

	s.Equal(model.ConnectionDisconnected, s.snapshot("alice").Self.ConnectionState)
}

func (s *ServiceSuite) TestReconnectTimeoutForReplacedSessionIsNoop() {
	s.ids.QueueIDs("sess-1", "sess-2")
	s.connect("alice")
	_, err := s.service.Disconnect(s.ctx, "alice", "sess-1")
	s.Require().NoError(err)
	s.connect("alice")
	_, err = s.service.Disconnect(s.ctx, "alice", "sess-2")
	s.Require().NoError(err)

	s.clock.Advance(grace)
	affected, err := s.service.HandleReconnectTimeout(s.ctx, "alice", "sess-1")
	s.Require().NoError(err)
	s.Empty(affected)

	_, err = s.service.SnapshotFor(s.ctx, "alice")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestReconnectTimeoutForConnectedSessionIsNoop() {
	session := s.connect("alice")
	s.clock.Advance(time.Hour)

	affected, err := s.service.HandleReconnectTimeout(s.ctx, "alice", session)
	s.Require().NoError(err)
	s.Empty(affected)
	s.Equal(model.ConnectionConnected, s.snapshot("alice").Self.ConnectionState)
}

func (s *ServiceSuite) TestReconnectTimeoutForRoomlessPlayerForgetsThem() {
	session := s.connect("alice")
	_, err := s.service.Disconnect(s.ctx, "alice", session)
	s.Require().NoError(err)

	s.clock.Advance(grace)
	affected, err := s.service.HandleReconnectTimeout(s.ctx, "alice", session)
	s.Require().NoError(err)
	s.Empty(affected)

	_, err = s.service.SnapshotFor(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestReconnectTimeoutWithoutMatchRemovesFromRoom() {
	s.roomOf("ABC123", "alice", "bob")
	session := s.sessionOf("bob")
	_, err := s.service.Disconnect(s.ctx, "bob", session)
	s.Require().NoError(err)

	s.clock.Advance(grace)
	affected, err := s.service.HandleReconnectTimeout(s.ctx, "bob", session)
	s.Require().NoError(err)

	s.Equal(ids("alice", "bob"), affected)
	s.Len(s.snapshot("alice").Room.Players, 1)
	_, err = s.service.SnapshotFor(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Heartbeat watchdog tests

func (s *ServiceSuite) TestExpireStaleSessionsForcesLeave() {
	s.ids.QueueIDs("sess-a", "sess-b")
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	s.clock.Advance(100 * time.Second)
	s.Require().NoError(s.service.TouchHeartbeat(s.ctx, "bob", "sess-b"))
	s.clock.Advance(80 * time.Second)

	expired, err := s.service.ExpireStaleSessions(s.ctx)
	s.Require().NoError(err)

	s.Require().Len(expired, 1)
	s.Equal(model.PlayerID("alice"), expired[0].PlayerID)
	s.Equal(model.SessionID("sess-a"), expired[0].SessionID)
	s.Equal(ids("alice", "bob"), expired[0].Affected)

	alice := s.matchStatus("bob", "alice")
	s.Equal(model.StatusLeave, alice.Status)
	s.Equal(model.LeaveReconnectTimeout, *alice.LeaveReason)

	room := s.snapshot("bob").Room
	s.Equal(model.PlayerID("bob"), room.LeaderID)
	s.Equal(model.ConnectionDisconnected, room.Players[0].ConnectionState)
	s.True(room.Players[0].PendingRemoval)
}

func (s *ServiceSuite) TestExpireStaleSessionsLeavesRoomWithoutMatch() {
	s.ids.QueueIDs("sess-a", "sess-b")
	s.roomOf("ABC123", "alice", "bob")

	s.clock.Advance(179 * time.Second)
	s.Require().NoError(s.service.TouchHeartbeat(s.ctx, "bob", "sess-b"))
	s.clock.Advance(time.Second)

	expired, err := s.service.ExpireStaleSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)

	snap := s.snapshot("alice")
	s.Nil(snap.Room)
	s.Equal(model.ConnectionDisconnected, snap.Self.ConnectionState)
	s.Len(s.snapshot("bob").Room.Players, 1)
}

func (s *ServiceSuite) TestExpireStaleSessionsIgnoresFreshSessions() {
	s.connect("alice")
	s.clock.Advance(179 * time.Second)

	expired, err := s.service.ExpireStaleSessions(s.ctx)
	s.Require().NoError(err)
	s.Empty(expired)
}

func (s *ServiceSuite) TestEvictInactiveDisconnected() {
	s.roomOf("ABC123", "alice", "bob")
	s.connect("carol")
	bob := s.sessionOf("bob")
	carol := s.sessionOf("carol")
	_, err := s.service.Disconnect(s.ctx, "bob", bob)
	s.Require().NoError(err)
	_, err = s.service.Disconnect(s.ctx, "carol", carol)
	s.Require().NoError(err)

	s.clock.Set(testStart.Add(179 * time.Second))
	affected, err := s.service.EvictInactiveDisconnected(s.ctx)
	s.Require().NoError(err)
	s.Empty(affected)

	s.clock.Set(testStart.Add(180 * time.Second))
	affected, err = s.service.EvictInactiveDisconnected(s.ctx)
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	s.Len(s.snapshot("alice").Room.Players, 1)
	_, err = s.service.SnapshotFor(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.service.SnapshotFor(s.ctx, "carol")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestPingTimeoutHasFloor() {
	config := DefaultConfig()
	config.PingTimeout = 10 * time.Millisecond

	service := NewService(nil, s.pool, s.clock, s.random, s.ids, config, testutil.NopLogger())

	s.Equal(MinPingTimeout, service.PingTimeout())
}
