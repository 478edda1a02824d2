package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/graph"
	"github.com/matzehuels/pdaviz/pkg/observability"
	"github.com/matzehuels/pdaviz/pkg/pipeline"
	"github.com/matzehuels/pdaviz/pkg/viz"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Message types pushed over /ws.
const (
	MessageFrame = "frame"
	MessageState = "state"
)

// Message is one websocket push.
type Message struct {
	Type  string             `json:"type"`
	Role  string             `json:"role,omitempty"`
	Event viz.EventKind      `json:"event,omitempty"`
	Frame *graph.Frame       `json:"frame,omitempty"`
	State *pipeline.Snapshot `json:"state,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// hub fans host events out to websocket clients. Host subscribers run on the
// emitting goroutine, so delivery never blocks: a client whose buffer is
// full misses the message and catches up with the next one.
type hub struct {
	s *Server

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	unsubscribe func()
}

type client struct {
	conn *websocket.Conn
	send chan Message
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func newHub(s *Server) *hub {
	h := &hub{s: s, clients: make(map[*client]struct{})}
	h.unsubscribe = s.host.Subscribe(h.onEvent)
	return h
}

func (h *hub) onEvent(e viz.Event) {
	h.mu.Lock()
	empty := len(h.clients) == 0
	h.mu.Unlock()
	if empty {
		return
	}

	msgs := []Message{h.frameMessage(e.Role, e.Kind)}
	if e.Kind == viz.EventReplay {
		msgs = append(msgs, h.stateMessage())
	}
	for _, m := range msgs {
		h.broadcast(m)
	}
}

func (h *hub) frameMessage(role replay.Role, kind viz.EventKind) Message {
	m := Message{Type: MessageFrame, Role: role.String(), Event: kind}
	if f, err := h.s.host.Snapshot(role); err == nil {
		m.Frame = f
	}
	return m
}

func (h *hub) stateMessage() Message {
	snap := h.s.runner.State().Snapshot()
	return Message{Type: MessageState, State: &snap}
}

func (h *hub) broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
			observability.Server().OnPush(m.Type, false)
		default:
			observability.Server().OnPush(m.Type, true)
			h.s.logger.Debug("dropped websocket message", "type", m.Type, "role", m.Role)
		}
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return len(s.hub.clients)
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}

	// Initial snapshot of both roles and the match state.
	for _, role := range replay.Roles {
		c.send <- h.frameMessage(role, viz.EventMounted)
	}
	c.send <- h.stateMessage()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	observability.Server().OnClients(len(h.clients))
	h.mu.Unlock()
	h.s.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and detects disconnects.
func (h *hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxBodySize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.s.logger.Debug("websocket client disconnected", "error", err)
			return
		}
	}
}

func (h *hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case m, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				h.s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		observability.Server().OnClients(len(h.clients))
	}
}

func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	observability.Server().OnClients(0)
	h.mu.Unlock()
	h.unsubscribe()
}
