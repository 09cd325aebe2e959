package response

import "github.com/mcoot/racecoord/internal/model"

// Health is the liveness response
type Health struct {
	Status string `json:"status"`
}

// Status reports what the coordinator is currently tracking
type Status struct {
	Protocol           string `json:"protocol"`
	ServerTimeMs       int64  `json:"serverTimeMs"`
	UptimeMs           int64  `json:"uptimeMs"`
	ReconnectGraceMs   int64  `json:"reconnectGraceMs"`
	PingTimeoutMs      int64  `json:"pingTimeoutMs"`
	Players            int    `json:"players"`
	ConnectedPlayers   int    `json:"connectedPlayers"`
	OpenConnections    int    `json:"openConnections"`
	Rooms              int    `json:"rooms"`
	ActiveMatches      int    `json:"activeMatches"`
	PendingGraceTimers int    `json:"pendingGraceTimers"`
}

// StatusFromStats fills the entity counts of a Status
func StatusFromStats(s model.Stats) Status {
	return Status{
		Players:          s.Players,
		ConnectedPlayers: s.ConnectedPlayers,
		Rooms:            s.Rooms,
		ActiveMatches:    s.ActiveMatches,
	}
}

// AdminAction reports the players whose view an admin command changed
type AdminAction struct {
	Affected []model.PlayerID `json:"affected"`
}
