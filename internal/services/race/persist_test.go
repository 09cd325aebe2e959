package race

import (
	"time"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/storage/memory"
)

func (s *ServiceSuite) disconnectAll(players ...string) {
	for _, p := range players {
		_, err := s.service.Disconnect(s.ctx, model.PlayerID(p), s.sessionOf(p))
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) TestExportHydrateRoundTrip() {
	s.roomOf("ABC123", "alice", "bob", "carol", "gina")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)
	_, err = s.service.Finish(s.ctx, "alice", 61000, 59000)
	s.Require().NoError(err)
	_, err = s.service.LeaveRoom(s.ctx, "carol")
	s.Require().NoError(err)

	s.roomOf("XYZ789", "dave", "erin")
	s.random.QueueInt63(7)
	_, err = s.service.RollMatch(s.ctx, "dave")
	s.Require().NoError(err)
	_, err = s.service.StartReadyCheck(s.ctx, "dave")
	s.Require().NoError(err)
	_, err = s.service.RespondReadyCheck(s.ctx, "erin", true)
	s.Require().NoError(err)

	s.connect("frank")
	s.disconnectAll("alice", "bob", "carol", "dave", "erin", "frank", "gina")

	first, err := s.service.Export(s.ctx)
	s.Require().NoError(err)
	s.Len(first.Players, 7)
	s.Len(first.Rooms, 2)
	s.Len(first.Matches, 1)

	restarted := s.newService(s.store)
	second, err := restarted.Export(s.ctx)
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *ServiceSuite) TestExportSkipsCompletedMatches() {
	s.roomOf("ABC123", "alice")
	s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "alice")
	s.Require().NoError(err)

	exported, err := s.service.Export(s.ctx)
	s.Require().NoError(err)
	s.Empty(exported.Matches)
	s.Nil(exported.Rooms[0].CurrentMatchID)
}

func (s *ServiceSuite) TestHydrateMarksConnectedSessionsDisconnected() {
	s.ids.QueueIDs("sess-a")
	s.connect("alice")

	s.clock.Advance(30 * time.Second)
	s.service = s.newService(s.store)

	s.Equal(model.ConnectionDisconnected, s.snapshot("alice").Self.ConnectionState)
	refs, err := s.service.DisconnectedSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal([]SessionRef{{PlayerID: "alice", SessionID: "sess-a", DisconnectedAt: testStart.Add(30 * time.Second)}}, refs)

	result, err := s.service.Connect(s.ctx, "alice", "Alice", "sess-a")
	s.Require().NoError(err)
	s.True(result.Resumed)
}

func (s *ServiceSuite) TestHydrateKeepsDisconnectTime() {
	s.ids.QueueIDs("sess-a")
	s.connect("alice")
	s.disconnectAll("alice")

	s.clock.Advance(30 * time.Second)
	s.service = s.newService(s.store)

	refs, err := s.service.DisconnectedSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(refs, 1)
	s.Equal(testStart, refs[0].DisconnectedAt)

	// the grace window keeps counting from the original disconnect
	s.clock.Advance(15 * time.Second)
	_, err = s.service.HandleReconnectTimeout(s.ctx, "alice", "sess-a")
	s.Require().NoError(err)
	_, err = s.service.SnapshotFor(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestHydratedMatchCarriesOn() {
	s.roomOf("ABC123", "alice", "bob")
	matchID := s.startMatch("alice")
	_, err := s.service.ReportDeath(s.ctx, "bob")
	s.Require().NoError(err)

	s.service = s.newService(s.store)
	s.Equal(matchID, s.snapshot("alice").Room.CurrentMatch.ID)

	_, err = s.service.Finish(s.ctx, "alice", 1000, 900)
	s.Require().NoError(err)
	s.Nil(s.snapshot("alice").Room.CurrentMatch)
}

func (s *ServiceSuite) TestHydrateRejectsCorruptState() {
	s.roomOf("ABC123", "alice", "bob")
	s.startMatch("alice")

	cases := map[string]func(p *model.PersistedState){
		"schema version": func(p *model.PersistedState) {
			p.SchemaVersion = 2
		},
		"duplicate room code": func(p *model.PersistedState) {
			dup := p.Rooms[0]
			dup.ID = "room-copy"
			dup.Players = nil
			p.Rooms = append(p.Rooms, dup)
		},
		"player in two rooms": func(p *model.PersistedState) {
			p.Rooms = append(p.Rooms, model.PersistedRoom{
				ID: "room-2", Code: "OTHER1", Players: []string{"alice"}, LeaderID: "alice",
			})
		},
		"member without profile": func(p *model.PersistedState) {
			p.Rooms[0].Players = append(p.Rooms[0].Players, "ghost")
		},
		"unknown player status": func(p *model.PersistedState) {
			p.Matches[0].Players[0].Status = "FLYING"
		},
		"completed match": func(p *model.PersistedState) {
			p.Matches[0].LifecycleStatus = string(model.MatchCompleted)
		},
		"missing current match": func(p *model.PersistedState) {
			p.Matches = nil
		},
		"leader outside room": func(p *model.PersistedState) {
			p.Rooms[0].LeaderID = "carol"
		},
		"unknown connection state": func(p *model.PersistedState) {
			p.Players[0].Session.ConnectionState = "SLEEPING"
		},
		"unreferenced active match": func(p *model.PersistedState) {
			p.Rooms[0].CurrentMatchID = nil
			p.Rooms[0].PendingMatch = &model.PersistedPendingMatch{
				TargetItem: "minecraft:beacon", Seed: 7, RolledAtMs: testStart.UnixMilli(), Revision: 1,
			}
		},
		"match roster outside room": func(p *model.PersistedState) {
			p.Players = append(p.Players, model.PersistedPlayer{ID: "zed", Name: "Zed", CreatedAtMs: testStart.UnixMilli()})
			p.Matches[0].Players = append(p.Matches[0].Players, model.PersistedPlayerState{
				PlayerID: "zed", Status: "RUNNING",
			})
		},
	}

	for name, corrupt := range cases {
		s.Run(name, func() {
			snapshot, err := s.service.Export(s.ctx)
			s.Require().NoError(err)
			corrupt(snapshot)

			store := memory.New()
			s.Require().NoError(store.Save(s.ctx, snapshot))
			service := s.newService(store)

			err = service.Warmup(s.ctx)
			s.ErrorIs(err, model.ErrPersistenceCorrupted)

			// nothing is served or overwritten from a corrupt snapshot
			_, err = service.Connect(s.ctx, "zed", "Zed", "")
			s.ErrorIs(err, model.ErrPersistenceCorrupted)
			s.Equal(1, store.SaveCount())
		})
	}
}
