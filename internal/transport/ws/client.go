package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mcoot/racecoord/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Largest accepted client frame
	readLimit = 64 * 1024

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is one websocket connection. It is bound to a player and session
// once hello succeeds.
type Client struct {
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time

	mu        sync.RWMutex
	playerID  model.PlayerID
	sessionID model.SessionID

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, connectedAt time.Time) *Client {
	conn.SetReadLimit(readLimit)
	return &Client{
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: connectedAt,
	}
}

func (c *Client) identity() (model.PlayerID, model.SessionID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID, c.sessionID, c.playerID != ""
}

func (c *Client) bind(playerID model.PlayerID, sessionID model.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.sessionID = sessionID
}

// enqueue queues a frame without blocking. It reports false when the buffer
// is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close starts the close handshake with the given reason. The handshake
// waits for the peer, so it runs in the background.
func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		go func() {
			_ = c.conn.Close(websocket.StatusNormalClosure, reason)
		}()
	})
}

func (c *Client) readLoop(ctx context.Context, handle func(context.Context, []byte)) error {
	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		handle(ctx, data)
	}
}

func (c *Client) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
