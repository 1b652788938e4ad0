package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*WebSocketClient]struct{}
	log     *slog.Logger
}

// NewHub creates an empty hub
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*WebSocketClient]struct{}),
		log:     log,
	}
}

// Add registers a client
func (h *Hub) Add(c *WebSocketClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Remove unregisters a client without closing it.
func (h *Hub) Remove(c *WebSocketClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends ev to every client and returns how many accepted it.
// Clients that cannot keep up are closed.
func (h *Hub) Broadcast(ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode event", "type", ev.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*WebSocketClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.Send(data) {
			sent++
			continue
		}
		h.log.Warn("dropping slow websocket client", "remote_addr", c.RemoteAddr())
		h.Remove(c)
		c.Close()
	}
	return sent
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WebSocketClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.Close()
	}
}

// handleWebSocket upgrades the request and serves the client until it leaves.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !s.connLimiter.TryAcquire(ip) {
		s.log.Warn("websocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				s.log.Warn("websocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		s.connLimiter.Release(ip)
		return
	}

	client := NewWebSocketClient(conn, ip, s.cfg.WebSocket.MaxMessageSize)
	s.hub.Add(client)
	go client.writePump()
	go s.serveClient(client)
}

func (s *Server) serveClient(c *WebSocketClient) {
	defer func() {
		s.hub.Remove(c)
		c.Close()
		s.connLimiter.Release(c.ip)
	}()

	s.log.Debug("websocket client connected", "remote_addr", c.RemoteAddr())
	c.SendEvent(Event{Type: EventHello, State: s.engine.State().String()})

	for {
		cmd, err := c.ReadCommand()
		if err != nil {
			if errors.Is(err, errBadCommand) {
				c.SendEvent(Event{Type: EventError, Message: err.Error()})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", "remote_addr", c.RemoteAddr(), "error", err)
			}
			return
		}
		c.SendEvent(s.handleCommand(cmd))
	}
}

// handleCommand runs one client command. Filter reports reach every client
// through the hub, so a successful filter command is only acknowledged.
func (s *Server) handleCommand(cmd Command) Event {
	fail := func(err error) Event {
		return Event{Type: EventError, Action: cmd.Action, Message: err.Error()}
	}
	ack := Event{Type: EventAck, Action: cmd.Action}

	switch cmd.Action {
	case ActionFilter:
		report, task, err := s.engine.Filter()
		if err != nil && report == nil && task == nil {
			return fail(err)
		}
		return ack

	case ActionConstraints:
		if cmd.Constraints == nil {
			return fail(errors.New("constraints are required"))
		}
		if err := cmd.Constraints.Apply(s.engine.Constraints()); err != nil {
			return fail(err)
		}
		return ack

	case ActionOption:
		if err := s.engine.Options().Set(cmd.Option, cmd.Value); err != nil {
			return fail(err)
		}
		return ack

	case ActionRandom:
		id, err := s.engine.RandomFilteredTile()
		if err != nil {
			return fail(err)
		}
		tile, err := s.describeTile(id)
		if err != nil {
			return fail(err)
		}
		return Event{Type: EventRandom, Action: cmd.Action, Tile: tile}

	case ActionClear:
		s.engine.ClearMatchingTiles()
		return ack

	case ActionReset:
		if err := s.engine.ResetConstraints(); err != nil {
			return fail(err)
		}
		return ack

	default:
		return fail(errors.New("unknown action " + cmd.Action))
	}
}

