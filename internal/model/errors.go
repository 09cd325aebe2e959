package model

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, client-visible identifier of a domain failure
type ErrorCode string

const (
	CodeInvalidPlayer        ErrorCode = "INVALID_PLAYER"
	CodePlayerNotFound       ErrorCode = "PLAYER_NOT_FOUND"
	CodePlayerNotConnected   ErrorCode = "PLAYER_NOT_CONNECTED"
	CodePlayerAlreadyInRoom  ErrorCode = "PLAYER_ALREADY_IN_ROOM"
	CodePlayerNotInRoom      ErrorCode = "PLAYER_NOT_IN_ROOM"
	CodeRoomNotFound         ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomMatchActive      ErrorCode = "ROOM_MATCH_ACTIVE"
	CodeInvalidRoomCode      ErrorCode = "INVALID_ROOM_CODE"
	CodeRoomCodeExhausted    ErrorCode = "ROOM_CODE_EXHAUSTED"
	CodeNotRoomLeader        ErrorCode = "NOT_ROOM_LEADER"
	CodeMatchAlreadyActive   ErrorCode = "MATCH_ALREADY_ACTIVE"
	CodePendingMatchMissing  ErrorCode = "PENDING_MATCH_MISSING"
	CodeEmptyRoom            ErrorCode = "EMPTY_ROOM"
	CodeNoActiveMatch        ErrorCode = "NO_ACTIVE_MATCH"
	CodePlayerNotRunning     ErrorCode = "PLAYER_NOT_RUNNING"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	CodeInvalidResult        ErrorCode = "INVALID_RESULT"
	CodeInvalidAdvancement   ErrorCode = "INVALID_ADVANCEMENT"
	CodeReadyCheckNotActive  ErrorCode = "READY_CHECK_NOT_ACTIVE"
	CodeTargetPoolEmpty      ErrorCode = "TARGET_POOL_EMPTY"
	CodePersistenceCorrupted ErrorCode = "PERSISTENCE_CORRUPTED"
	CodeInvariantViolation   ErrorCode = "INVARIANT_VIOLATION"
)

// Error is a domain failure: a code plus a human-readable message.
// Two errors are considered equal by errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Withf returns a copy of the error with a more specific message
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from err, if it carries one
func CodeOf(err error) (ErrorCode, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// Domain errors, one per code
var (
	// Identity errors
	ErrInvalidPlayer      = &Error{CodeInvalidPlayer, "playerId and name must not be blank"}
	ErrPlayerNotFound     = &Error{CodePlayerNotFound, "player not found"}
	ErrPlayerNotConnected = &Error{CodePlayerNotConnected, "player has not connected"}

	// Room errors
	ErrPlayerAlreadyInRoom = &Error{CodePlayerAlreadyInRoom, "player is already in a room"}
	ErrPlayerNotInRoom     = &Error{CodePlayerNotInRoom, "player is not in a room"}
	ErrRoomNotFound        = &Error{CodeRoomNotFound, "room not found"}
	ErrRoomMatchActive     = &Error{CodeRoomMatchActive, "room has a match in progress"}
	ErrInvalidRoomCode     = &Error{CodeInvalidRoomCode, "invalid room code"}
	ErrRoomCodeExhausted   = &Error{CodeRoomCodeExhausted, "failed to allocate a unique room code"}
	ErrNotRoomLeader       = &Error{CodeNotRoomLeader, "only the room leader can do this"}

	// Match errors
	ErrMatchAlreadyActive  = &Error{CodeMatchAlreadyActive, "a match is already active"}
	ErrPendingMatchMissing = &Error{CodePendingMatchMissing, "no match has been rolled"}
	ErrEmptyRoom           = &Error{CodeEmptyRoom, "room has no players"}
	ErrNoActiveMatch       = &Error{CodeNoActiveMatch, "no active match"}
	ErrPlayerNotRunning    = &Error{CodePlayerNotRunning, "player is not running"}
	ErrInvalidTransition   = &Error{CodeInvalidTransition, "invalid player state transition"}
	ErrInvalidResult       = &Error{CodeInvalidResult, "rttMs and igtMs must be non-negative"}
	ErrInvalidAdvancement  = &Error{CodeInvalidAdvancement, "advancement id must be 1..256 characters"}
	ErrTargetPoolEmpty     = &Error{CodeTargetPoolEmpty, "target item pool is empty"}

	// Ready check errors
	ErrReadyCheckNotActive = &Error{CodeReadyCheckNotActive, "no ready check is active"}

	// Integrity errors
	ErrPersistenceCorrupted = &Error{CodePersistenceCorrupted, "persisted state is corrupted"}
	ErrInvariantViolation   = &Error{CodeInvariantViolation, "state invariant violated"}
)
