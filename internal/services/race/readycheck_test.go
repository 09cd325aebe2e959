package race

import (
	"time"

	"github.com/mcoot/racecoord/internal/model"
)

func (s *ServiceSuite) TestStartReadyCheck() {
	s.roomOf("ABC123", "alice", "bob")

	affected, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(ids("alice", "bob"), affected)

	check := s.snapshot("bob").Room.ReadyCheck
	s.Require().NotNil(check)
	s.Equal(model.PlayerID("alice"), check.InitiatedBy)
	s.Equal(testStart.UnixMilli(), check.StartedAtMs)
	s.Equal(testStart.Add(model.ReadyCheckTTL).UnixMilli(), check.ExpiresAtMs)
	s.Empty(check.Responses)
}

func (s *ServiceSuite) TestStartReadyCheckDuringMatchFails() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.ErrorIs(err, model.ErrMatchAlreadyActive)
}

func (s *ServiceSuite) TestRespondReadyCheckRecordsAndOverwrites() {
	s.roomOf("ABC123", "alice", "bob", "carol")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.service.RespondReadyCheck(s.ctx, "carol", true)
	s.Require().NoError(err)
	_, err = s.service.RespondReadyCheck(s.ctx, "bob", false)
	s.Require().NoError(err)

	s.clock.Advance(time.Second)
	_, err = s.service.RespondReadyCheck(s.ctx, "bob", true)
	s.Require().NoError(err)

	responses := s.snapshot("alice").Room.ReadyCheck.Responses
	s.Require().Len(responses, 2)
	// sorted by player id
	s.Equal(model.PlayerID("bob"), responses[0].PlayerID)
	s.Equal(model.ReadyStatusReady, responses[0].Status)
	s.Equal(testStart.Add(2*time.Second).UnixMilli(), responses[0].RespondedAtMs)
	s.Equal(model.PlayerID("carol"), responses[1].PlayerID)
	s.Equal(model.ReadyStatusReady, responses[1].Status)
}

func (s *ServiceSuite) TestRespondWithoutReadyCheckFails() {
	s.roomOf("ABC123", "alice", "bob")

	_, err := s.service.RespondReadyCheck(s.ctx, "bob", true)
	s.ErrorIs(err, model.ErrReadyCheckNotActive)
}

func (s *ServiceSuite) TestReadyCheckExpires() {
	s.roomOf("ABC123", "alice", "bob")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)

	s.clock.Advance(model.ReadyCheckTTL - time.Millisecond)
	s.NotNil(s.snapshot("alice").Room.ReadyCheck)

	s.clock.Advance(time.Millisecond)
	s.Nil(s.snapshot("alice").Room.ReadyCheck)

	_, err = s.service.RespondReadyCheck(s.ctx, "bob", true)
	s.ErrorIs(err, model.ErrReadyCheckNotActive)
}

func (s *ServiceSuite) TestStartReadyCheckReplacesPrevious() {
	s.roomOf("ABC123", "alice", "bob")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)
	_, err = s.service.RespondReadyCheck(s.ctx, "bob", true)
	s.Require().NoError(err)

	s.clock.Advance(3 * time.Second)
	_, err = s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)

	check := s.snapshot("alice").Room.ReadyCheck
	s.Empty(check.Responses)
	s.Equal(testStart.Add(3*time.Second).UnixMilli(), check.StartedAtMs)
}

func (s *ServiceSuite) TestStartMatchClearsReadyCheck() {
	s.roomOf("ABC123", "alice", "bob")
	s.random.QueueInt63(1)
	_, err := s.service.RollMatch(s.ctx, "alice")
	s.Require().NoError(err)
	_, err = s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.service.StartMatch(s.ctx, "alice")
	s.Require().NoError(err)

	s.Nil(s.snapshot("alice").Room.ReadyCheck)
}

func (s *ServiceSuite) TestLeavingDiscardsReadyCheck() {
	s.roomOf("ABC123", "alice", "bob", "carol")
	_, err := s.service.StartReadyCheck(s.ctx, "alice")
	s.Require().NoError(err)
	_, err = s.service.RespondReadyCheck(s.ctx, "bob", true)
	s.Require().NoError(err)

	_, err = s.service.LeaveRoom(s.ctx, "bob")
	s.Require().NoError(err)

	s.Nil(s.snapshot("alice").Room.ReadyCheck)
}
