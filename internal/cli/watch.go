package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/racecoord/internal/model"
	"github.com/mcoot/racecoord/internal/protocol"
)

const watchPingInterval = 30 * time.Second

// errWatchDone stops the watch loops once --count frames have been printed
var errWatchDone = errors.New("watch complete")

type watchOptions struct {
	playerID  string
	name      string
	sessionID string
	create    bool
	room      string
	count     int
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join the websocket as a player and print every frame",
		Long: `Connect to the race websocket, send hello as the given player and print
every frame the server sends back.

With --create the player opens a new room after the welcome. With --room the
player joins an existing room by code. A ping is sent every 30 seconds to
keep the heartbeat alive.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.create && opts.room != "" {
				return errors.New("--create and --room cannot be combined")
			}
			if opts.name == "" {
				opts.name = opts.playerID
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.playerID, "player-id", "", "Player id to connect as (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name (defaults to the player id)")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Session id to resume")
	cmd.Flags().BoolVar(&opts.create, "create", false, "Create a room after connecting")
	cmd.Flags().StringVar(&opts.room, "room", "", "Join the room with this code after connecting")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Exit after this many frames (0 streams until interrupted)")
	_ = cmd.MarkFlagRequired("player-id")

	return cmd
}

// frame holds the fields of any server frame that watch prints
type frame struct {
	Type          string              `json:"type"`
	PlayerID      string              `json:"playerId"`
	PlayerName    string              `json:"playerName"`
	Name          string              `json:"name"`
	SessionID     string              `json:"sessionId"`
	Resumed       bool                `json:"resumed"`
	Action        string              `json:"action"`
	Code          string              `json:"code"`
	Message       string              `json:"message"`
	AdvancementID string              `json:"advancementId"`
	ServerTimeMs  int64               `json:"serverTimeMs"`
	Snapshot      *model.RaceSnapshot `json:"snapshot"`
}

func watch(ctx context.Context, opts watchOptions) error {
	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.CloseNow()

	out := NewOutput(cfg.Output)
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Connected to %s\n", wsURL)
	}

	hello := map[string]any{
		"type":     protocol.TypeHello,
		"playerId": opts.playerID,
		"name":     opts.name,
	}
	if opts.sessionID != "" {
		hello["sessionId"] = opts.sessionID
	}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printed := 0
		for {
			_, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				return fmt.Errorf("unreadable frame: %w", err)
			}
			out.printFrame(f, data)

			if f.Type == protocol.TypeWelcome {
				if err := afterWelcome(gctx, conn, opts); err != nil {
					return err
				}
			}

			printed++
			if opts.count > 0 && printed >= opts.count {
				return errWatchDone
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(watchPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := wsjson.Write(gctx, conn, map[string]string{"type": protocol.TypePing}); err != nil {
					return err
				}
			}
		}
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errWatchDone):
		return conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Reason != "" {
			out.PrintMessage("Disconnected: " + closeErr.Reason)
		} else {
			out.PrintMessage("Disconnected")
		}
		return nil
	case ctx.Err() != nil:
		_ = conn.Close(websocket.StatusNormalClosure, "")
		out.PrintMessage("Disconnected")
		return nil
	default:
		return err
	}
}

func afterWelcome(ctx context.Context, conn *websocket.Conn, opts watchOptions) error {
	switch {
	case opts.create:
		return wsjson.Write(ctx, conn, map[string]string{"type": protocol.TypeCreateRoom})
	case opts.room != "":
		return wsjson.Write(ctx, conn, map[string]string{"type": protocol.TypeJoinRoom, "roomCode": opts.room})
	}
	return nil
}

func (o *Output) printFrame(f frame, raw []byte) {
	if o.format == "json" {
		fmt.Println(string(raw))
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	switch f.Type {
	case protocol.TypeWelcome:
		resumed := ""
		if f.Resumed {
			resumed = " (resumed)"
		}
		fmt.Printf("[%s] welcome: %s as %s, session %s%s\n", timestamp, f.PlayerID, f.Name, f.SessionID, resumed)
	case protocol.TypeAck:
		fmt.Printf("[%s] ack: %s\n", timestamp, f.Action)
	case protocol.TypeError:
		fmt.Printf("[%s] error: %s (%s)\n", timestamp, f.Message, f.Code)
	case protocol.TypePong:
		fmt.Printf("[%s] pong\n", timestamp)
	case protocol.TypeAdvancement:
		fmt.Printf("[%s] advancement: %s got %s\n", timestamp, f.PlayerName, f.AdvancementID)
	case protocol.TypeState:
		fmt.Printf("[%s] state:\n", timestamp)
		if f.Snapshot != nil {
			o.printSnapshot(f.Snapshot)
		}
	default:
		fmt.Printf("[%s] %s: %s\n", timestamp, f.Type, string(raw))
	}
}
