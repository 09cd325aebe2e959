package race

import (
	"github.com/mcoot/racecoord/internal/model"
)

// CreateRoom tests

func (s *ServiceSuite) TestCreateRoomSucceeds() {
	s.connect("alice")
	s.random.QueueString("ABC123")

	affected, err := s.service.CreateRoom(s.ctx, "alice")
	s.Require().NoError(err)

	s.Equal(ids("alice"), affected)
	snap := s.snapshot("alice")
	s.Require().NotNil(snap.Room)
	s.Equal(model.RoomCode("ABC123"), snap.Room.Code)
	s.Equal(model.PlayerID("alice"), snap.Room.LeaderID)
	s.Require().NotNil(snap.Self.RoomCode)
	s.Equal(model.RoomCode("ABC123"), *snap.Self.RoomCode)
	s.Len(snap.Room.Players, 1)
}

func (s *ServiceSuite) TestCreateRoomRequiresConnection() {
	_, err := s.service.CreateRoom(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrPlayerNotConnected)
}

func (s *ServiceSuite) TestCreateRoomWhenAlreadyInRoomFails() {
	s.connect("alice")
	s.createRoom("alice", "ABC123")

	s.random.QueueString("XYZ789")
	_, err := s.service.CreateRoom(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerAlreadyInRoom)
}

func (s *ServiceSuite) TestCreateRoomRetriesTakenCode() {
	s.connect("alice")
	s.connect("bob")
	s.createRoom("alice", "AAAAAA")

	s.random.QueueString("AAAAAA", "BBBBBB")
	_, err := s.service.CreateRoom(s.ctx, "bob")
	s.Require().NoError(err)

	s.Equal(model.RoomCode("BBBBBB"), s.snapshot("bob").Room.Code)
}

func (s *ServiceSuite) TestCreateRoomCodeExhausted() {
	s.connect("alice")
	s.connect("bob")
	s.createRoom("alice", "AAAAAA")

	for range MaxRoomCodeAttempts {
		s.random.QueueString("AAAAAA")
	}
	_, err := s.service.CreateRoom(s.ctx, "bob")
	s.ErrorIs(err, model.ErrRoomCodeExhausted)
	s.Nil(s.snapshot("bob").Room)
}

// JoinRoom tests

func (s *ServiceSuite) TestJoinRoomSucceeds() {
	s.connect("alice")
	s.connect("bob")
	s.createRoom("alice", "ABC123")

	affected, err := s.service.JoinRoom(s.ctx, "bob", "  abc123 ")
	s.Require().NoError(err)

	s.Equal(ids("alice", "bob"), affected)
	for _, viewer := range []string{"alice", "bob"} {
		room := s.snapshot(viewer).Room
		s.Require().NotNil(room)
		s.Equal(model.PlayerID("alice"), room.LeaderID)
		s.Equal(ids("alice", "bob"), []model.PlayerID{room.Players[0].PlayerID, room.Players[1].PlayerID})
	}
}

func (s *ServiceSuite) TestJoinRoomRejectsMalformedCode() {
	s.connect("bob")

	for _, code := range []string{"abc", "ABCDEFGHJKLMN", "ABC-12", "   "} {
		_, err := s.service.JoinRoom(s.ctx, "bob", code)
		s.ErrorIs(err, model.ErrInvalidRoomCode, code)
	}
}

func (s *ServiceSuite) TestJoinRoomNotFound() {
	s.connect("bob")

	_, err := s.service.JoinRoom(s.ctx, "bob", "NOPE99")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ServiceSuite) TestJoinRoomRequiresConnection() {
	s.connect("alice")
	s.createRoom("alice", "ABC123")

	_, err := s.service.JoinRoom(s.ctx, "ghost", "ABC123")
	s.ErrorIs(err, model.ErrPlayerNotConnected)
}

func (s *ServiceSuite) TestJoinRoomWhenAlreadyInRoomFails() {
	s.roomOf("ABC123", "alice", "bob")

	_, err := s.service.JoinRoom(s.ctx, "bob", "ABC123")
	s.ErrorIs(err, model.ErrPlayerAlreadyInRoom)
}

func (s *ServiceSuite) TestJoinRoomWithActiveMatchFails() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	s.connect("carol")
	saves := s.store.SaveCount()

	_, err := s.service.JoinRoom(s.ctx, "carol", "ABC123")
	s.ErrorIs(err, model.ErrRoomMatchActive)

	room := s.snapshot("alice").Room
	s.Len(room.Players, 2)
	s.Len(room.CurrentMatch.Players, 2)
	s.Nil(s.snapshot("carol").Room)
	s.Equal(saves, s.store.SaveCount())
}

func (s *ServiceSuite) TestJoinRoomClearsReadyCheck() {
	s.roomOf("ABC123", "alice", "bob")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)
	s.connect("carol")

	_, err = s.service.JoinRoom(s.ctx, "carol", "ABC123")
	s.Require().NoError(err)

	s.Nil(s.snapshot("alice").Room.ReadyCheck)
}

// LeaveRoom tests

func (s *ServiceSuite) TestLeaveRoomPromotesNextLeader() {
	s.roomOf("ABC123", "alice", "bob", "carol")

	affected, err := s.service.LeaveRoom(s.ctx, "alice")
	s.Require().NoError(err)

	s.Equal(ids("alice", "bob", "carol"), affected)
	room := s.snapshot("bob").Room
	s.Equal(model.PlayerID("bob"), room.LeaderID)
	s.Len(room.Players, 2)
	s.Nil(s.snapshot("alice").Room)
}

func (s *ServiceSuite) TestLeaveRoomDeletesEmptyRoom() {
	s.connect("alice")
	s.connect("bob")
	s.createRoom("alice", "ABC123")

	_, err := s.service.LeaveRoom(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.service.JoinRoom(s.ctx, "bob", "ABC123")
	s.ErrorIs(err, model.ErrRoomNotFound)

	// the code is free again
	s.createRoom("bob", "ABC123")
}

func (s *ServiceSuite) TestLeaveRoomWhenRoomlessFails() {
	s.connect("alice")

	_, err := s.service.LeaveRoom(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotInRoom)
}

func (s *ServiceSuite) TestLeaveRoomDuringMatchDefersRemoval() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	affected, err := s.service.LeaveRoom(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	bob := s.matchStatus("alice", "bob")
	s.Equal(model.StatusLeave, bob.Status)
	s.Require().NotNil(bob.LeaveReason)
	s.Equal(model.LeaveManual, *bob.LeaveReason)
	s.Require().NotNil(bob.LeftAtMs)

	room := s.snapshot("alice").Room
	s.Len(room.Players, 2)
	s.True(room.Players[1].PendingRemoval)

	_, err = s.service.Finish(s.ctx, "alice", 1000, 900)
	s.Require().NoError(err)

	room = s.snapshot("alice").Room
	s.Nil(room.CurrentMatch)
	s.Len(room.Players, 1)
	s.Nil(s.snapshot("bob").Room)
}

func (s *ServiceSuite) TestLeaderLeavingDuringMatchHandsOverLeadership() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	_, err := s.service.LeaveRoom(s.ctx, "alice")
	s.Require().NoError(err)

	s.Equal(model.PlayerID("bob"), s.snapshot("bob").Room.LeaderID)

	_, err = s.service.CancelStart(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNotRoomLeader)
}

func (s *ServiceSuite) TestLeaveRoomByLastRunnerCompletesMatch() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.service.LeaveRoom(s.ctx, "bob")
	s.Require().NoError(err)

	room := s.snapshot("alice").Room
	s.Nil(room.CurrentMatch)
	s.Len(room.Players, 1)
	s.Equal(model.PlayerID("alice"), room.LeaderID)
}

// LeaveMatch tests

func (s *ServiceSuite) TestLeaveMatchKeepsMembership() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	affected, err := s.service.LeaveMatch(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	bob := s.matchStatus("alice", "bob")
	s.Equal(model.StatusLeave, bob.Status)
	s.False(s.snapshot("alice").Room.Players[1].PendingRemoval)

	_, err = s.service.Finish(s.ctx, "alice", 1000, 900)
	s.Require().NoError(err)

	room := s.snapshot("bob").Room
	s.Nil(room.CurrentMatch)
	s.Len(room.Players, 2)
}

func (s *ServiceSuite) TestLeaveMatchWhenAlreadyTerminalKeepsState() {
	s.roomOf("ABC123", "alice", "bob", "carol")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.service.LeaveMatch(s.ctx, "bob")
	s.Require().NoError(err)

	s.Equal(model.StatusDeath, s.matchStatus("alice", "bob").Status)
}

func (s *ServiceSuite) TestLeaveMatchWithoutMatchFails() {
	s.roomOf("ABC123", "alice", "bob")

	_, err := s.service.LeaveMatch(s.ctx, "bob")
	s.ErrorIs(err, model.ErrNoActiveMatch)

	s.connect("carol")
	_, err = s.service.LeaveMatch(s.ctx, "carol")
	s.ErrorIs(err, model.ErrPlayerNotInRoom)
}

// normalizeRoomCode tests

func (s *ServiceSuite) TestNormalizeRoomCode() {
	code, err := normalizeRoomCode(" ab12cd ")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("AB12CD"), code)

	code, err = normalizeRoomCode("abcd")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ABCD"), code)

	_, err = normalizeRoomCode("abcdefghjklmn")
	s.ErrorIs(err, model.ErrInvalidRoomCode)
}
