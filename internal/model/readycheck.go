package model

import (
	"maps"
	"time"
)

// ReadyCheckTTL is how long a ready check accepts responses
const ReadyCheckTTL = 10 * time.Second

// ReadyStatus is a player's answer to a ready check
type ReadyStatus string

const (
	ReadyStatusReady    ReadyStatus = "READY"
	ReadyStatusNotReady ReadyStatus = "NOT_READY"
)

// ParseReadyStatus validates a persisted ready status
func ParseReadyStatus(s string) (ReadyStatus, bool) {
	switch r := ReadyStatus(s); r {
	case ReadyStatusReady, ReadyStatusNotReady:
		return r, true
	}
	return "", false
}

// ReadyResponse records one player's answer
type ReadyResponse struct {
	Status      ReadyStatus
	RespondedAt time.Time
}

// ReadyCheck polls room members for readiness before a match
type ReadyCheck struct {
	InitiatedBy PlayerID
	StartedAt   time.Time
	ExpiresAt   time.Time
	Responses   map[PlayerID]ReadyResponse
}

// NewReadyCheck opens a ready check that expires after ReadyCheckTTL
func NewReadyCheck(initiatedBy PlayerID, now time.Time) *ReadyCheck {
	return &ReadyCheck{
		InitiatedBy: initiatedBy,
		StartedAt:   now,
		ExpiresAt:   now.Add(ReadyCheckTTL),
		Responses:   make(map[PlayerID]ReadyResponse),
	}
}

// IsExpired reports whether the check no longer accepts responses
func (c *ReadyCheck) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Clone returns a deep copy of the ready check
func (c *ReadyCheck) Clone() *ReadyCheck {
	cp := *c
	cp.Responses = maps.Clone(c.Responses)
	if cp.Responses == nil {
		cp.Responses = make(map[PlayerID]ReadyResponse)
	}
	return &cp
}
