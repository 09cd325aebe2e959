package model

import "time"

// PlayerID uniquely identifies a player; supplied by the client
type PlayerID string

// SessionID identifies one resumable connection session
type SessionID string

// ConnectionState tracks whether a player's session has a live transport
type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "CONNECTED"
	ConnectionDisconnected ConnectionState = "DISCONNECTED"
)

// ParseConnectionState validates a persisted connection state
func ParseConnectionState(s string) (ConnectionState, bool) {
	switch c := ConnectionState(s); c {
	case ConnectionConnected, ConnectionDisconnected:
		return c, true
	}
	return "", false
}

// PlayerProfile is the durable identity of a player
type PlayerProfile struct {
	ID         PlayerID
	Name       string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// PlayerSession binds the current connection lifetime to a player
type PlayerSession struct {
	SessionID      SessionID
	State          ConnectionState
	LastSeenAt     time.Time
	DisconnectedAt time.Time // zero while connected
}

// IsConnected reports whether the session currently has a live transport
func (s *PlayerSession) IsConnected() bool {
	return s.State == ConnectionConnected
}
