package model

import (
	"slices"
	"time"
)

// RoomID is the internal identifier of a room
type RoomID string

// RoomCode is the human-shareable code used to join a room
type RoomCode string

// Room code allocation settings
const (
	RoomCodeLength   = 6
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Room is a group of players sharing one leader and at most one match
type Room struct {
	ID   RoomID
	Code RoomCode
	// Players keeps insertion order; it is used for display and leader promotion
	Players         []PlayerID
	LeaderID        PlayerID
	CurrentMatchID  *MatchID
	PendingMatch    *PendingMatchConfig
	ReadyCheck      *ReadyCheck
	RevisionCounter int
	PendingRemovals []PlayerID
}

// PendingMatchConfig is a rolled configuration awaiting StartMatch
type PendingMatchConfig struct {
	TargetItem string
	Seed       int64
	RolledAt   time.Time
	Revision   int
}

// HasMember reports whether the player belongs to the room
func (r *Room) HasMember(playerID PlayerID) bool {
	return slices.Contains(r.Players, playerID)
}

// AddMember appends the player unless already present
func (r *Room) AddMember(playerID PlayerID) {
	if !r.HasMember(playerID) {
		r.Players = append(r.Players, playerID)
	}
}

// RemoveMember drops the player from the roster and from pending removals
func (r *Room) RemoveMember(playerID PlayerID) {
	r.Players = slices.DeleteFunc(r.Players, func(id PlayerID) bool { return id == playerID })
	r.PendingRemovals = slices.DeleteFunc(r.PendingRemovals, func(id PlayerID) bool { return id == playerID })
}

// IsPendingRemoval reports whether the player is flagged to leave after the match
func (r *Room) IsPendingRemoval(playerID PlayerID) bool {
	return slices.Contains(r.PendingRemovals, playerID)
}

// MarkPendingRemoval flags the player to be removed once the active match ends
func (r *Room) MarkPendingRemoval(playerID PlayerID) {
	if !r.IsPendingRemoval(playerID) {
		r.PendingRemovals = append(r.PendingRemovals, playerID)
	}
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	c.PendingRemovals = slices.Clone(r.PendingRemovals)
	if r.CurrentMatchID != nil {
		id := *r.CurrentMatchID
		c.CurrentMatchID = &id
	}
	if r.PendingMatch != nil {
		p := *r.PendingMatch
		c.PendingMatch = &p
	}
	if r.ReadyCheck != nil {
		c.ReadyCheck = r.ReadyCheck.Clone()
	}
	return &c
}
