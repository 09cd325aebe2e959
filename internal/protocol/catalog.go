package protocol

// Catalog describes the websocket protocol for clients and tooling
type Catalog struct {
	Protocol       string        `json:"protocol"`
	WebsocketPath  string        `json:"websocketPath"`
	ClientMessages []MessageSpec `json:"clientMessages"`
	ServerMessages []MessageSpec `json:"serverMessages"`
}

// MessageSpec documents one message type
type MessageSpec struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Fields      []FieldSpec `json:"fields"`
}

// FieldSpec documents one message field
type FieldSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

func noFields(msgType, description string) MessageSpec {
	return MessageSpec{Type: msgType, Description: description, Fields: []FieldSpec{}}
}

// BuildCatalog returns the protocol catalog served by the status API
func BuildCatalog() Catalog {
	return Catalog{
		Protocol:      Version,
		WebsocketPath: Path,
		ClientMessages: []MessageSpec{
			{
				Type:        TypeHello,
				Description: "Authenticate the connection, optionally resuming a previous session.",
				Fields: []FieldSpec{
					{"playerId", "string", true, "Stable player identifier."},
					{"name", "string", true, "Current display name."},
					{"sessionId", "string", false, "Previous session id to resume."},
				},
			},
			noFields(TypePing, "Liveness probe."),
			noFields(TypeSyncState, "Push the latest snapshot for this player."),
			noFields(TypeCreateRoom, "Create a room with the sender as leader."),
			{
				Type:        TypeJoinRoom,
				Description: "Join an existing room by code.",
				Fields:      []FieldSpec{{"roomCode", "string", true, "Room code, 4..12 letters or digits."}},
			},
			noFields(TypeLeaveRoom, "Leave the current room."),
			noFields(TypeLeaveMatch, "Give up the active match without leaving the room."),
			noFields(TypeRollMatch, "Leader only: roll a target item and seed."),
			noFields(TypeStartMatch, "Leader only: start the rolled match."),
			noFields(TypeCancelStart, "Leader only: return an untouched match to the rolled state."),
			noFields(TypeReadyCheck, "Leader only: open a 10 second ready check."),
			{
				Type:        TypeReadyCheckResponse,
				Description: "Answer the open ready check.",
				Fields:      []FieldSpec{{"ready", "boolean", true, "true for READY, false for NOT_READY."}},
			},
			{
				Type:        TypeFinish,
				Description: "Report a completed run.",
				Fields: []FieldSpec{
					{"rttMs", "int64", true, "Real time in milliseconds."},
					{"igtMs", "int64", true, "In-game time in milliseconds."},
				},
			},
			noFields(TypeDeath, "Report a death while running."),
			{
				Type:        TypeAdvancement,
				Description: "Report a completed advancement. Root advancements are ignored.",
				Fields:      []FieldSpec{{"id", "string", true, "Advancement identifier."}},
			},
		},
		ServerMessages: []MessageSpec{
			{
				Type:        TypeWelcome,
				Description: "Session accepted.",
				Fields: []FieldSpec{
					{"playerId", "string", true, "Echoed player id."},
					{"name", "string", true, "Echoed name."},
					{"sessionId", "string", true, "Session id to resume with."},
					{"resumed", "boolean", true, "Whether the previous session was resumed."},
					{"reconnectGraceMs", "int64", true, "Reconnect grace period."},
				},
			},
			{
				Type:        TypeAck,
				Description: "Command accepted.",
				Fields: []FieldSpec{
					{"action", "string", true, "Accepted command type."},
					{"message", "string", false, "Optional note."},
				},
			},
			{
				Type:        TypeState,
				Description: "Authoritative snapshot for the receiver.",
				Fields:      []FieldSpec{{"snapshot", "object", true, "Complete race snapshot."}},
			},
			{
				Type:        TypeError,
				Description: "Command rejected or protocol error.",
				Fields: []FieldSpec{
					{"code", "string", true, "Machine-readable code."},
					{"message", "string", true, "Human-readable message."},
				},
			},
			{
				Type:        TypePong,
				Description: "Ping response.",
				Fields:      []FieldSpec{{"serverTimeMs", "int64", true, "Server clock."}},
			},
			{
				Type:        TypeAdvancement,
				Description: "Advancement completed by another room member.",
				Fields: []FieldSpec{
					{"playerId", "string", true, "Who completed it."},
					{"playerName", "string", true, "Their display name."},
					{"advancementId", "string", true, "Advancement identifier."},
				},
			},
		},
	}
}
