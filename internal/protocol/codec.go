package protocol

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/mcoot/racecoord/internal/model"
)

type rawMessage struct {
	Type      *string     `json:"type"`
	PlayerID  *string     `json:"playerId"`
	Name      *string     `json:"name"`
	SessionID *string     `json:"sessionId"`
	RoomCode  *string     `json:"roomCode"`
	Ready     *bool       `json:"ready"`
	RTTMs     json.Number `json:"rttMs"`
	IGTMs     json.Number `json:"igtMs"`
	ID        *string     `json:"id"`
}

// Decode parses one client text frame. Every failure is a BAD_REQUEST.
func Decode(data []byte) (*ClientMessage, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrBadRequest.Withf("Malformed JSON")
	}

	msgType, err := required("type", raw.Type)
	if err != nil {
		return nil, err
	}
	msg := &ClientMessage{Type: msgType}

	switch msgType {
	case TypeHello:
		id, err := required("playerId", raw.PlayerID)
		if err != nil {
			return nil, err
		}
		name, err := required("name", raw.Name)
		if err != nil {
			return nil, err
		}
		msg.PlayerID = model.PlayerID(id)
		msg.Name = name
		msg.SessionID = model.SessionID(optional(raw.SessionID))

	case TypeJoinRoom:
		code, err := required("roomCode", raw.RoomCode)
		if err != nil {
			return nil, err
		}
		msg.RoomCode = code

	case TypeReadyCheckResponse:
		if raw.Ready == nil {
			return nil, ErrBadRequest.Withf("Missing or invalid 'ready'")
		}
		msg.Ready = *raw.Ready

	case TypeFinish:
		if msg.RTTMs, err = requiredInt("rttMs", raw.RTTMs); err != nil {
			return nil, err
		}
		if msg.IGTMs, err = requiredInt("igtMs", raw.IGTMs); err != nil {
			return nil, err
		}

	case TypeAdvancement:
		id, err := required("id", raw.ID)
		if err != nil {
			return nil, err
		}
		msg.AdvancementID = id

	case TypePing, TypeSyncState, TypeCreateRoom, TypeLeaveRoom, TypeLeaveMatch,
		TypeRollMatch, TypeStartMatch, TypeCancelStart, TypeReadyCheck, TypeDeath:

	default:
		return nil, ErrBadRequest.Withf("Unknown message type")
	}
	return msg, nil
}

// Encode serializes a server message
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func required(name string, value *string) (string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", ErrBadRequest.Withf("Missing or invalid '%s'", name)
	}
	return *value, nil
}

func optional(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return ""
	}
	return *value
}

// requiredInt accepts integral numbers, fractional numbers (truncated) and
// numeric strings
func requiredInt(name string, value json.Number) (int64, error) {
	if value == "" {
		return 0, ErrBadRequest.Withf("Missing or invalid '%s'", name)
	}
	if n, err := value.Int64(); err == nil {
		return n, nil
	}
	f, err := value.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrBadRequest.Withf("Missing or invalid '%s'", name)
	}
	return int64(f), nil
}
