package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is how many events may wait for a slow client before it is dropped.
	sendBuffer = 16
)

var errBadCommand = errors.New("malformed command")

// Command actions a client may send.
const (
	ActionFilter      = "filter"
	ActionConstraints = "constraints"
	ActionOption      = "option"
	ActionRandom      = "random"
	ActionClear       = "clear"
	ActionReset       = "reset"
)

// Command is a message from a WebSocket client.
type Command struct {
	Action      string               `json:"action"`
	Constraints *constraint.Document `json:"constraints,omitempty"`
	Option      config.OptionKey     `json:"option,omitempty"`
	Value       bool                 `json:"value,omitempty"`
}

// Event types pushed to clients.
const (
	EventHello     = "hello"
	EventReport    = "report"
	EventPrefilter = "prefilter"
	EventRandom    = "random"
	EventAck       = "ack"
	EventError     = "error"
)

// Event is a message pushed to WebSocket clients.
type Event struct {
	Type    string         `json:"type"`
	Action  string         `json:"action,omitempty"`
	State   string         `json:"state,omitempty"`
	Report  *engine.Report `json:"report,omitempty"`
	Viable  *int           `json:"viable,omitempty"`
	Tile    *tileResponse  `json:"tile,omitempty"`
	Message string         `json:"message,omitempty"`
}

// WebSocketClient is one connected browser. Reads happen on the serving
// goroutine; writes go through a buffered channel drained by writePump.
type WebSocketClient struct {
	conn      *websocket.Conn
	ip        string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketClient wraps conn. Messages larger than maxMessageSize close it.
func NewWebSocketClient(conn *websocket.Conn, ip string, maxMessageSize int64) *WebSocketClient {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &WebSocketClient{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// ReadCommand blocks for the next command. Blank messages are skipped.
// A message that is not a command returns an error wrapping errBadCommand
// and leaves the connection usable.
func (c *WebSocketClient) ReadCommand() (Command, error) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return Command{}, err
		}
		if len(bytes.TrimSpace(message)) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			return Command{}, fmt.Errorf("%w: %v", errBadCommand, err)
		}
		if cmd.Action == "" {
			return Command{}, fmt.Errorf("%w: missing action", errBadCommand)
		}
		return cmd, nil
	}
}

// Send queues data for writing. It reports false when the client is closed
// or its buffer is full.
func (c *WebSocketClient) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendEvent encodes ev and queues it.
func (c *WebSocketClient) SendEvent(ev Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	return c.Send(data)
}

// writePump writes queued messages and pings until the client closes.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *WebSocketClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
