package protocol

import (
	"errors"

	"github.com/mcoot/racecoord/internal/model"
)

// Version identifies the websocket protocol spoken on Path
const Version = "item-race-ws-v1"

// Path is where the websocket endpoint is mounted
const Path = "/race"

// Client -> server message types
const (
	TypeHello              = "hello"
	TypePing               = "ping"
	TypeSyncState          = "sync_state"
	TypeCreateRoom         = "create_room"
	TypeJoinRoom           = "join_room"
	TypeLeaveRoom          = "leave_room"
	TypeLeaveMatch         = "leave_match"
	TypeRollMatch          = "roll_match"
	TypeStartMatch         = "start_match"
	TypeCancelStart        = "cancel_start"
	TypeReadyCheck         = "ready_check"
	TypeReadyCheckResponse = "ready_check_response"
	TypeFinish             = "finish"
	TypeDeath              = "death"
	TypeAdvancement        = "advancement"
)

// Server -> client message types. Advancement notifications reuse TypeAdvancement.
const (
	TypeWelcome = "welcome"
	TypeAck     = "ack"
	TypeError   = "error"
	TypePong    = "pong"
	TypeState   = "state"
)

// Protocol-level error codes, alongside the domain codes in model
const (
	CodeBadRequest           model.ErrorCode = "BAD_REQUEST"
	CodeNotAuthenticated     model.ErrorCode = "NOT_AUTHENTICATED"
	CodeAlreadyAuthenticated model.ErrorCode = "ALREADY_AUTHENTICATED"
	CodeInternalError        model.ErrorCode = "INTERNAL_ERROR"
)

var (
	ErrBadRequest           = &model.Error{Code: CodeBadRequest, Message: "invalid request"}
	ErrNotAuthenticated     = &model.Error{Code: CodeNotAuthenticated, Message: "Send 'hello' first"}
	ErrAlreadyAuthenticated = &model.Error{Code: CodeAlreadyAuthenticated, Message: "hello already completed for this connection"}
	ErrInternal             = &model.Error{Code: CodeInternalError, Message: "Unexpected server error"}
)

// ClientMessage is a decoded client frame. Only the fields relevant to Type
// are populated.
type ClientMessage struct {
	Type          string
	PlayerID      model.PlayerID
	Name          string
	SessionID     model.SessionID
	RoomCode      string
	Ready         bool
	RTTMs         int64
	IGTMs         int64
	AdvancementID string
}

// Welcome confirms a hello
type Welcome struct {
	Type             string          `json:"type"`
	PlayerID         model.PlayerID  `json:"playerId"`
	Name             string          `json:"name"`
	SessionID        model.SessionID `json:"sessionId"`
	Resumed          bool            `json:"resumed"`
	ReconnectGraceMs int64           `json:"reconnectGraceMs"`
}

// Ack confirms an accepted command
type Ack struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// Error reports a rejected command or a protocol failure
type Error struct {
	Type    string          `json:"type"`
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Pong answers a ping
type Pong struct {
	Type         string `json:"type"`
	ServerTimeMs int64  `json:"serverTimeMs"`
}

// State carries the receiver's authoritative snapshot
type State struct {
	Type     string              `json:"type"`
	Snapshot *model.RaceSnapshot `json:"snapshot"`
}

// Advancement tells room members that someone completed an advancement
type Advancement struct {
	Type          string         `json:"type"`
	PlayerID      model.PlayerID `json:"playerId"`
	PlayerName    string         `json:"playerName"`
	AdvancementID string         `json:"advancementId"`
}

func NewWelcome(playerID model.PlayerID, name string, sessionID model.SessionID, resumed bool, graceMs int64) Welcome {
	return Welcome{
		Type:             TypeWelcome,
		PlayerID:         playerID,
		Name:             name,
		SessionID:        sessionID,
		Resumed:          resumed,
		ReconnectGraceMs: graceMs,
	}
}

func NewAck(action string) Ack {
	return Ack{Type: TypeAck, Action: action}
}

// NewError converts err into an error frame. Errors without a domain code
// become INTERNAL_ERROR with a generic message.
func NewError(err error) Error {
	var de *model.Error
	if errors.As(err, &de) {
		return Error{Type: TypeError, Code: de.Code, Message: de.Message}
	}
	return Error{Type: TypeError, Code: ErrInternal.Code, Message: ErrInternal.Message}
}

func NewPong(serverTimeMs int64) Pong {
	return Pong{Type: TypePong, ServerTimeMs: serverTimeMs}
}

func NewState(snapshot *model.RaceSnapshot) State {
	return State{Type: TypeState, Snapshot: snapshot}
}

func NewAdvancement(b *model.AdvancementBroadcast) Advancement {
	return Advancement{
		Type:          TypeAdvancement,
		PlayerID:      b.PlayerID,
		PlayerName:    b.PlayerName,
		AdvancementID: b.AdvancementID,
	}
}
