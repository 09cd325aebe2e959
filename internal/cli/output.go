package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcoot/racecoord/internal/api/response"
	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Printf("Status: %s\n", v.Status)
	case response.Status:
		o.printStatus(v)
	case model.RaceSnapshot:
		o.printSnapshot(&v)
	case protocol.Catalog:
		o.printCatalog(v)
	case CatalogReport:
		o.printCatalogReport(v)
	case SnapshotReport:
		o.printSnapshotReport(v)
	case model.AdminOverview:
		o.printAdminOverview(v)
	case response.AdminAction:
		o.printAdminAction(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// CatalogReport summarizes a checked target item file
type CatalogReport struct {
	File  string   `json:"file"`
	Count int      `json:"count"`
	Items []string `json:"items"`
}

// SnapshotReport summarizes a checked persisted snapshot
type SnapshotReport struct {
	File          string      `json:"file"`
	Empty         bool        `json:"empty"`
	SchemaVersion int         `json:"schemaVersion,omitempty"`
	SavedAtMs     int64       `json:"savedAtMs,omitempty"`
	Valid         bool        `json:"valid"`
	Stats         model.Stats `json:"stats"`
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func (o *Output) printStatus(s response.Status) {
	fmt.Printf("Protocol: %s\n", s.Protocol)
	fmt.Printf("Server Time: %s\n", formatMs(s.ServerTimeMs))
	fmt.Printf("Uptime: %s\n", (time.Duration(s.UptimeMs) * time.Millisecond).String())
	fmt.Printf("Reconnect Grace: %s\n", (time.Duration(s.ReconnectGraceMs) * time.Millisecond).String())
	fmt.Printf("Ping Timeout: %s\n", (time.Duration(s.PingTimeoutMs) * time.Millisecond).String())
	fmt.Printf("Players: %d (%d connected)\n", s.Players, s.ConnectedPlayers)
	fmt.Printf("Open Connections: %d\n", s.OpenConnections)
	fmt.Printf("Rooms: %d\n", s.Rooms)
	fmt.Printf("Active Matches: %d\n", s.ActiveMatches)
	fmt.Printf("Pending Grace Timers: %d\n", s.PendingGraceTimers)
}

func (o *Output) printSnapshot(s *model.RaceSnapshot) {
	fmt.Printf("Player: %s (%s) - %s\n", s.Self.Name, s.Self.PlayerID, s.Self.ConnectionState)
	if s.Room == nil {
		fmt.Println("Room: none")
		return
	}

	room := s.Room
	fmt.Printf("Room: %s\n", room.Code)
	fmt.Printf("Members (%d):\n", len(room.Players))
	for _, p := range room.Players {
		var tags []string
		if p.PlayerID == room.LeaderID {
			tags = append(tags, "leader")
		}
		if p.PendingRemoval {
			tags = append(tags, "leaving")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Printf("  - %s (%s) - %s%s\n", p.Name, p.PlayerID, p.ConnectionState, suffix)
	}

	if room.PendingMatch != nil {
		fmt.Printf("Rolled: %s (seed %d, revision %d)\n",
			room.PendingMatch.TargetItem, room.PendingMatch.Seed, room.PendingMatch.Revision)
	}

	if rc := room.ReadyCheck; rc != nil {
		fmt.Printf("Ready Check: started by %s, expires %s\n", rc.InitiatedBy, formatMs(rc.ExpiresAtMs))
		for _, r := range rc.Responses {
			fmt.Printf("  - %s: %s\n", r.PlayerID, r.Status)
		}
	}

	if m := room.CurrentMatch; m != nil {
		state := "active"
		if !m.IsActive {
			state = "complete"
		}
		fmt.Printf("Match: %s (%s)\n", m.ID, state)
		fmt.Printf("Target: %s (seed %d)\n", m.TargetItem, m.Seed)
		for _, p := range m.Players {
			line := fmt.Sprintf("  - %s: %s", p.PlayerID, p.Status)
			if p.Result != nil {
				line += fmt.Sprintf(" rtt=%dms igt=%dms", p.Result.RTTMs, p.Result.IGTMs)
			}
			if p.LeaveReason != nil {
				line += fmt.Sprintf(" (%s)", *p.LeaveReason)
			}
			fmt.Println(line)
		}
	}
}

func (o *Output) printCatalog(c protocol.Catalog) {
	fmt.Printf("Protocol: %s at %s\n", c.Protocol, c.WebsocketPath)
	fmt.Println("\nClient Messages:")
	for _, m := range c.ClientMessages {
		o.printMessageSpec(m)
	}
	fmt.Println("\nServer Messages:")
	for _, m := range c.ServerMessages {
		o.printMessageSpec(m)
	}
}

func (o *Output) printMessageSpec(m protocol.MessageSpec) {
	fmt.Printf("  %s - %s\n", m.Type, m.Description)
	for _, f := range m.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Printf("      %s (%s, %s)\n", f.Name, f.Type, req)
	}
}

func (o *Output) printCatalogReport(r CatalogReport) {
	fmt.Printf("%s: %d target items\n", r.File, r.Count)
	for _, item := range r.Items {
		fmt.Printf("  %s\n", item)
	}
}

func (o *Output) printSnapshotReport(r SnapshotReport) {
	if r.Empty {
		fmt.Printf("%s: no snapshot\n", r.File)
		return
	}
	fmt.Printf("%s: schema v%d saved %s\n", r.File, r.SchemaVersion, formatMs(r.SavedAtMs))
	fmt.Printf("Players: %d\n", r.Stats.Players)
	fmt.Printf("Rooms: %d\n", r.Stats.Rooms)
	fmt.Printf("Active Matches: %d\n", r.Stats.ActiveMatches)
	fmt.Println("Valid: yes")
}

func (o *Output) printAdminOverview(v model.AdminOverview) {
	fmt.Printf("Server Time: %s\n", formatMs(v.ServerTimeMs))
	fmt.Printf("Rooms (%d):\n", len(v.Rooms))
	for _, room := range v.Rooms {
		state := "idle"
		switch {
		case room.CurrentMatch != nil:
			state = "match " + string(room.CurrentMatch.ID)
		case room.ReadyCheck != nil:
			state = "ready check"
		case room.PendingMatch != nil:
			state = "rolled " + room.PendingMatch.TargetItem
		}
		fmt.Printf("  - %s (%s) leader=%s players=%d %s\n", room.Code, room.ID, room.LeaderID, len(room.Players), state)
	}
	fmt.Printf("Detached Players (%d):\n", len(v.DetachedPlayers))
	for _, p := range v.DetachedPlayers {
		line := fmt.Sprintf("  - %s (%s) - %s", p.Name, p.PlayerID, p.ConnectionState)
		if p.DisconnectedAtMs != nil {
			line += " since " + formatMs(*p.DisconnectedAtMs)
		}
		fmt.Println(line)
	}
}

func (o *Output) printAdminAction(v response.AdminAction) {
	if len(v.Affected) == 0 {
		fmt.Println("Nothing changed")
		return
	}
	ids := make([]string, 0, len(v.Affected))
	for _, id := range v.Affected {
		ids = append(ids, string(id))
	}
	fmt.Printf("Affected: %s\n", strings.Join(ids, ", "))
}
