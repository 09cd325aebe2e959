package model

import (
	"maps"
	"time"
)

// MatchID uniquely identifies a match
type MatchID string

// MatchLifecycle is the coarse state of a match
type MatchLifecycle string

const (
	MatchActive    MatchLifecycle = "ACTIVE"
	MatchCompleted MatchLifecycle = "COMPLETED"
)

// ParseMatchLifecycle validates a persisted lifecycle status
func ParseMatchLifecycle(s string) (MatchLifecycle, bool) {
	switch l := MatchLifecycle(s); l {
	case MatchActive, MatchCompleted:
		return l, true
	}
	return "", false
}

// PlayerStatus is the per-player outcome within a match
type PlayerStatus string

const (
	StatusRunning  PlayerStatus = "RUNNING"
	StatusFinished PlayerStatus = "FINISHED"
	StatusDeath    PlayerStatus = "DEATH"
	StatusLeave    PlayerStatus = "LEAVE"
)

// LeaveReason records why a player left a match
type LeaveReason string

const (
	LeaveManual           LeaveReason = "MANUAL"
	LeaveReconnectTimeout LeaveReason = "RECONNECT_TIMEOUT"
	LeaveKick             LeaveReason = "KICK"
)

// ParseLeaveReason validates a persisted leave reason
func ParseLeaveReason(s string) (LeaveReason, bool) {
	switch r := LeaveReason(s); r {
	case LeaveManual, LeaveReconnectTimeout, LeaveKick:
		return r, true
	}
	return "", false
}

// PlayerResult is the timing reported by a finished player
type PlayerResult struct {
	RTTMs int64 `json:"rttMs"`
	IGTMs int64 `json:"igtMs"`
}

// PlayerState is one player's state inside a match. Each status is its own
// type so a state can only carry the fields valid for it.
type PlayerState interface {
	Status() PlayerStatus
	playerState()
}

// Running is the initial state of every participant
type Running struct{}

// Finished carries the reported result
type Finished struct {
	Result PlayerResult
}

// Dead marks a participant that died during the run
type Dead struct{}

// Left marks a participant that left the match
type Left struct {
	Reason LeaveReason
	At     time.Time
}

func (Running) Status() PlayerStatus  { return StatusRunning }
func (Finished) Status() PlayerStatus { return StatusFinished }
func (Dead) Status() PlayerStatus     { return StatusDeath }
func (Left) Status() PlayerStatus     { return StatusLeave }

func (Running) playerState()  {}
func (Finished) playerState() {}
func (Dead) playerState()     {}
func (Left) playerState()     {}

// IsTerminal reports whether no further transition is allowed out of s
func IsTerminal(s PlayerState) bool {
	return s.Status() != StatusRunning
}

// Match is one timed run with a fixed target and seed
type Match struct {
	ID          MatchID
	RoomID      RoomID
	Revision    int
	TargetItem  string
	Seed        int64
	Lifecycle   MatchLifecycle
	Players     map[PlayerID]PlayerState
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// IsActive reports whether the match is still in progress
func (m *Match) IsActive() bool {
	return m.Lifecycle == MatchActive
}

// Transition moves a RUNNING participant to a terminal state
func (m *Match) Transition(playerID PlayerID, next PlayerState, now time.Time) error {
	current, ok := m.Players[playerID]
	if !ok {
		return ErrInvalidTransition.Withf("player %q is not in match %q", playerID, m.ID)
	}
	if current.Status() != StatusRunning || !IsTerminal(next) {
		return ErrInvalidTransition.Withf("cannot move %q from %s to %s", playerID, current.Status(), next.Status())
	}
	m.Players[playerID] = next
	m.UpdatedAt = now
	return nil
}

// AllTerminal reports whether every participant has a terminal status
func (m *Match) AllTerminal() bool {
	for _, state := range m.Players {
		if !IsTerminal(state) {
			return false
		}
	}
	return true
}

// AnyProgressed reports whether any participant has left the RUNNING state
func (m *Match) AnyProgressed() bool {
	for _, state := range m.Players {
		if IsTerminal(state) {
			return true
		}
	}
	return false
}

// Complete marks the match COMPLETED
func (m *Match) Complete(now time.Time) {
	m.Lifecycle = MatchCompleted
	m.UpdatedAt = now
	m.CompletedAt = &now
}

// Clone returns a deep copy of the match. States are values, so copying
// the map is enough.
func (m *Match) Clone() *Match {
	c := *m
	c.Players = maps.Clone(m.Players)
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
