package model

// SchemaVersion is the only persisted snapshot layout this build reads
const SchemaVersion = 1

// PersistedState is the full exportable state used for crash recovery.
// Only active matches are ever persisted.
type PersistedState struct {
	SchemaVersion int               `json:"schemaVersion"`
	SavedAtMs     int64             `json:"savedAtMs"`
	Players       []PersistedPlayer `json:"players"`
	Rooms         []PersistedRoom   `json:"rooms"`
	Matches       []PersistedMatch  `json:"matches"`
}

// PersistedPlayer is a profile plus its current session, if any
type PersistedPlayer struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	CreatedAtMs  int64             `json:"createdAtMs"`
	LastSeenAtMs int64             `json:"lastSeenAtMs"`
	Session      *PersistedSession `json:"session,omitempty"`
}

// PersistedSession keeps the session id so clients can resume after a restart
type PersistedSession struct {
	SessionID        string `json:"sessionId"`
	ConnectionState  string `json:"connectionState"`
	LastSeenAtMs     int64  `json:"lastSeenAtMs"`
	DisconnectedAtMs *int64 `json:"disconnectedAtMs,omitempty"`
}

// PersistedRoom mirrors Room
type PersistedRoom struct {
	ID              string                 `json:"id"`
	Code            string                 `json:"code"`
	Players         []string               `json:"players"`
	LeaderID        string                 `json:"leaderId"`
	CurrentMatchID  *string                `json:"currentMatchId,omitempty"`
	PendingMatch    *PersistedPendingMatch `json:"pendingMatch,omitempty"`
	ReadyCheck      *PersistedReadyCheck   `json:"readyCheck,omitempty"`
	RevisionCounter int                    `json:"revisionCounter"`
	PendingRemovals []string               `json:"pendingRemovals"`
}

// PersistedPendingMatch mirrors PendingMatchConfig
type PersistedPendingMatch struct {
	TargetItem string `json:"targetItem"`
	Seed       int64  `json:"seed"`
	RolledAtMs int64  `json:"rolledAtMs"`
	Revision   int    `json:"revision"`
}

// PersistedReadyCheck mirrors ReadyCheck with responses sorted by player id
type PersistedReadyCheck struct {
	InitiatedBy string                   `json:"initiatedBy"`
	StartedAtMs int64                    `json:"startedAtMs"`
	ExpiresAtMs int64                    `json:"expiresAtMs"`
	Responses   []PersistedReadyResponse `json:"responses"`
}

// PersistedReadyResponse mirrors ReadyResponse
type PersistedReadyResponse struct {
	PlayerID      string `json:"playerId"`
	Status        string `json:"status"`
	RespondedAtMs int64  `json:"respondedAtMs"`
}

// PersistedMatch mirrors Match with players sorted by id
type PersistedMatch struct {
	ID              string                 `json:"id"`
	RoomID          string                 `json:"roomId"`
	Revision        int                    `json:"revision"`
	TargetItem      string                 `json:"targetItem"`
	Seed            int64                  `json:"seed"`
	LifecycleStatus string                 `json:"lifecycleStatus"`
	Players         []PersistedPlayerState `json:"players"`
	CreatedAtMs     int64                  `json:"createdAtMs"`
	UpdatedAtMs     int64                  `json:"updatedAtMs"`
	CompletedAtMs   *int64                 `json:"completedAtMs,omitempty"`
}

// PersistedPlayerState flattens the PlayerState union
type PersistedPlayerState struct {
	PlayerID    string        `json:"playerId"`
	Status      string        `json:"status"`
	Result      *PlayerResult `json:"result,omitempty"`
	LeaveReason *string       `json:"leaveReason,omitempty"`
	LeftAtMs    *int64        `json:"leftAtMs,omitempty"`
}
