package model

// RaceSnapshot is the full state view pushed to one player
type RaceSnapshot struct {
	ServerTimeMs     int64     `json:"serverTimeMs"`
	ReconnectGraceMs int64     `json:"reconnectGraceMs"`
	Self             SelfView  `json:"self"`
	Room             *RoomView `json:"room"`
}

// SelfView describes the receiving player
type SelfView struct {
	PlayerID        PlayerID        `json:"playerId"`
	Name            string          `json:"name"`
	ConnectionState ConnectionState `json:"connectionState"`
	RoomCode        *RoomCode       `json:"roomCode"`
}

// RoomView is the visible state of a room
type RoomView struct {
	Code         RoomCode          `json:"code"`
	LeaderID     PlayerID          `json:"leaderId"`
	Players      []RoomPlayerView  `json:"players"`
	PendingMatch *PendingMatchView `json:"pendingMatch"`
	CurrentMatch *MatchView        `json:"currentMatch"`
	ReadyCheck   *ReadyCheckView   `json:"readyCheck"`
}

// RoomPlayerView is one member of a room
type RoomPlayerView struct {
	PlayerID        PlayerID        `json:"playerId"`
	Name            string          `json:"name"`
	ConnectionState ConnectionState `json:"connectionState"`
	PendingRemoval  bool            `json:"pendingRemoval"`
}

// PendingMatchView is a rolled configuration
type PendingMatchView struct {
	Revision   int    `json:"revision"`
	TargetItem string `json:"targetItem"`
	Seed       int64  `json:"seed"`
	RolledAtMs int64  `json:"rolledAtMs"`
}

// MatchView is a match with players in room order
type MatchView struct {
	ID            MatchID           `json:"id"`
	Revision      int               `json:"revision"`
	TargetItem    string            `json:"targetItem"`
	Seed          int64             `json:"seed"`
	IsActive      bool              `json:"isActive"`
	CreatedAtMs   int64             `json:"createdAtMs"`
	UpdatedAtMs   int64             `json:"updatedAtMs"`
	CompletedAtMs *int64            `json:"completedAtMs"`
	Players       []MatchPlayerView `json:"players"`
}

// MatchPlayerView is one participant's state
type MatchPlayerView struct {
	PlayerID    PlayerID      `json:"playerId"`
	Status      PlayerStatus  `json:"status"`
	Result      *PlayerResult `json:"result"`
	LeaveReason *LeaveReason  `json:"leaveReason"`
	LeftAtMs    *int64        `json:"leftAtMs"`
}

// ReadyCheckView is a live ready check
type ReadyCheckView struct {
	InitiatedBy PlayerID                 `json:"initiatedBy"`
	StartedAtMs int64                    `json:"startedAtMs"`
	ExpiresAtMs int64                    `json:"expiresAtMs"`
	Responses   []ReadyCheckResponseView `json:"responses"`
}

// ReadyCheckResponseView is one answer to a ready check
type ReadyCheckResponseView struct {
	PlayerID      PlayerID    `json:"playerId"`
	Status        ReadyStatus `json:"status"`
	RespondedAtMs int64       `json:"respondedAtMs"`
}

// AdvancementBroadcast tells the transport who should hear about an advancement
type AdvancementBroadcast struct {
	PlayerID      PlayerID
	PlayerName    string
	AdvancementID string
	Recipients    []PlayerID
}

// AdminOverview is the operator view of every room plus the players that
// are known but belong to no room
type AdminOverview struct {
	ServerTimeMs    int64             `json:"serverTimeMs"`
	Rooms           []AdminRoomView   `json:"rooms"`
	DetachedPlayers []AdminPlayerView `json:"detachedPlayers"`
}

// AdminRoomView is a room as an operator sees it
type AdminRoomView struct {
	ID RoomID `json:"id"`
	RoomView
}

// AdminPlayerView is a player outside any room
type AdminPlayerView struct {
	PlayerID         PlayerID        `json:"playerId"`
	Name             string          `json:"name"`
	ConnectionState  ConnectionState `json:"connectionState"`
	LastSeenAtMs     int64           `json:"lastSeenAtMs"`
	DisconnectedAtMs *int64          `json:"disconnectedAtMs"`
}

// Stats summarizes the in-memory state for status reporting
type Stats struct {
	Players          int `json:"players"`
	ConnectedPlayers int `json:"connectedPlayers"`
	Rooms            int `json:"rooms"`
	ActiveMatches    int `json:"activeMatches"`
}
