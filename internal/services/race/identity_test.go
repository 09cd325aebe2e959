package race

import (
	"github.com/mcoot/racecoord/internal/model"
)

// Connect tests

func (s *ServiceSuite) TestConnectCreatesProfileAndSession() {
	s.ids.QueueIDs("sess-1")

	result, err := s.service.Connect(s.ctx, "alice", "Alice", "")
	s.Require().NoError(err)

	s.Equal(model.SessionID("sess-1"), result.SessionID)
	s.False(result.Resumed)
	s.Equal(ids("alice"), result.Affected)

	snap := s.snapshot("alice")
	s.Equal(model.PlayerID("alice"), snap.Self.PlayerID)
	s.Equal("Alice", snap.Self.Name)
	s.Equal(model.ConnectionConnected, snap.Self.ConnectionState)
	s.Nil(snap.Self.RoomCode)
	s.Nil(snap.Room)
	s.Equal(int64(45000), snap.ReconnectGraceMs)
	s.Equal(testStart.UnixMilli(), snap.ServerTimeMs)
}

func (s *ServiceSuite) TestConnectRejectsBlankIdentity() {
	_, err := s.service.Connect(s.ctx, "  ", "Alice", "")
	s.ErrorIs(err, model.ErrInvalidPlayer)

	_, err = s.service.Connect(s.ctx, "alice", "   ", "")
	s.ErrorIs(err, model.ErrInvalidPlayer)

	_, err = s.service.SnapshotFor(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestConnectUpdatesName() {
	s.connect("alice")

	_, err := s.service.Connect(s.ctx, "alice", "  Renamed ", "")
	s.Require().NoError(err)

	s.Equal("Renamed", s.snapshot("alice").Self.Name)
}

func (s *ServiceSuite) TestConnectResumesMatchingSession() {
	s.ids.QueueIDs("sess-1")
	s.connect("alice")
	_, err := s.service.Disconnect(s.ctx, "alice", "sess-1")
	s.Require().NoError(err)

	result, err := s.service.Connect(s.ctx, "alice", "Alice", "sess-1")
	s.Require().NoError(err)

	s.True(result.Resumed)
	s.Equal(model.SessionID("sess-1"), result.SessionID)
	s.Equal(model.ConnectionConnected, s.snapshot("alice").Self.ConnectionState)
}

func (s *ServiceSuite) TestConnectNeverResumesStaleSession() {
	s.ids.QueueIDs("sess-1", "sess-2", "sess-3")
	s.connect("alice")

	result, err := s.service.Connect(s.ctx, "alice", "Alice", "bogus")
	s.Require().NoError(err)
	s.False(result.Resumed)
	s.Equal(model.SessionID("sess-2"), result.SessionID)

	// sess-1 was replaced and must not come back
	result, err = s.service.Connect(s.ctx, "alice", "Alice", "sess-1")
	s.Require().NoError(err)
	s.False(result.Resumed)
	s.Equal(model.SessionID("sess-3"), result.SessionID)
}

func (s *ServiceSuite) TestConnectResumeForUnknownPlayerIssuesNewSession() {
	s.ids.QueueIDs("sess-1")

	result, err := s.service.Connect(s.ctx, "alice", "Alice", "sess-from-elsewhere")
	s.Require().NoError(err)

	s.False(result.Resumed)
	s.Equal(model.SessionID("sess-1"), result.SessionID)
}

func (s *ServiceSuite) TestConnectAffectsWholeRoom() {
	s.roomOf("ABC123", "alice", "bob")

	result, err := s.service.Connect(s.ctx, "bob", "Bob", "")
	s.Require().NoError(err)

	s.Equal(ids("alice", "bob"), result.Affected)
}

// Disconnect tests

func (s *ServiceSuite) TestDisconnectMarksSessionDisconnected() {
	s.roomOf("ABC123", "alice", "bob")
	session := s.sessionOf("bob")

	affected, err := s.service.Disconnect(s.ctx, "bob", session)
	s.Require().NoError(err)

	s.Equal(ids("alice", "bob"), affected)
	room := s.snapshot("alice").Room
	s.Equal(model.ConnectionDisconnected, room.Players[1].ConnectionState)
	s.Len(room.Players, 2)
}

func (s *ServiceSuite) TestDisconnectIgnoresMismatchedSession() {
	s.connect("alice")
	saves := s.store.SaveCount()

	affected, err := s.service.Disconnect(s.ctx, "alice", "not-the-session")
	s.Require().NoError(err)

	s.Empty(affected)
	s.Equal(saves, s.store.SaveCount())
	s.Equal(model.ConnectionConnected, s.snapshot("alice").Self.ConnectionState)
}

func (s *ServiceSuite) TestDisconnectTwiceIsNoop() {
	session := s.connect("alice")
	_, err := s.service.Disconnect(s.ctx, "alice", session)
	s.Require().NoError(err)

	affected, err := s.service.Disconnect(s.ctx, "alice", session)
	s.Require().NoError(err)
	s.Empty(affected)
}

func (s *ServiceSuite) TestTouchHeartbeatIsNotSaved() {
	session := s.connect("alice")
	saves := s.store.SaveCount()

	s.Require().NoError(s.service.TouchHeartbeat(s.ctx, "alice", session))
	s.Equal(saves, s.store.SaveCount())
}

func (s *ServiceSuite) TestDisconnectedSessionsListsOnlyDisconnected() {
	s.ids.QueueIDs("sess-a", "sess-b")
	s.connect("alice")
	s.connect("bob")
	_, err := s.service.Disconnect(s.ctx, "bob", "sess-b")
	s.Require().NoError(err)

	refs, err := s.service.DisconnectedSessions(s.ctx)
	s.Require().NoError(err)

	s.Equal([]SessionRef{{PlayerID: "bob", SessionID: "sess-b", DisconnectedAt: testStart}}, refs)
}

func (s *ServiceSuite) sessionOf(id string) model.SessionID {
	s.service.mu.Lock()
	defer s.service.mu.Unlock()
	sess, ok := s.service.st.sessions[model.PlayerID(id)]
	s.Require().True(ok)
	return sess.SessionID
}
