package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/input"
	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 32
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client message types.
const (
	MsgPointer  = "pointer"
	MsgViewport = "viewport"
	MsgSelect   = "select"
	MsgNudge    = "nudge"
	MsgReset    = "reset"
	MsgEdit     = "edit"
)

// Server message types.
const (
	MsgHomography = "homography"
	MsgState      = "state"
	MsgError      = "error"
)

// ClientMessage is a message received from an editing client. Pointer
// positions are screen pixels relative to the last announced viewport.
//
// A select message replaces the whole selection, including flags set by
// pointers, and whatever arrived last in a tick wins. Missing or null
// indices therefore clear the selection: {"type":"select"} deselects every
// corner.
type ClientMessage struct {
	Type    string  `json:"type"`
	Phase   string  `json:"phase,omitempty"`
	ID      int64   `json:"id,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	Indices []int   `json:"indices,omitempty"`
	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	Enabled bool    `json:"enabled,omitempty"`
}

// ServerMessage is pushed to every session.
type ServerMessage struct {
	Type    string       `json:"type"`
	Matrix  *geom.Matrix `json:"matrix,omitempty"`
	Corners []geom.Point `json:"corners,omitempty"`
	Editing bool         `json:"editing"`
	Error   string       `json:"error,omitempty"`
}

// session is one WebSocket client. projection and live are owned by the
// reader goroutine.
type session struct {
	id         int64
	conn       *websocket.Conn
	send       chan []byte
	projection input.ScreenProjection
	live       map[int64]struct{}
	closeOnce  sync.Once
}

// pointerID namespaces a client pointer id by session so that two clients
// using the same ids never collide in the editor.
func (s *session) pointerID(clientID int64) editor.PointerID {
	return editor.PointerID(s.id<<32 | (clientID & 0xffffffff))
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// hub tracks live sessions.
type hub struct {
	mu       sync.RWMutex
	nextID   atomic.Int64
	sessions map[*session]struct{}
}

func newHub() *hub {
	return &hub{sessions: make(map[*session]struct{})}
}

func (h *hub) add(conn *websocket.Conn) *session {
	s := &session{
		id:   h.nextID.Add(1),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		live: make(map[int64]struct{}),
	}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	s.close()
}

func (h *hub) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// broadcast queues data on every session, dropping it for sessions whose
// buffer is full.
func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.send <- data:
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		_ = s.conn.Close()
	}
}

// editWebSocketHandler upgrades the connection and runs an editing session.
func (s *Server) editWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	sess := s.hub.add(conn)
	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "session", sess.id)

	go s.writePump(sess)
	s.sendStateTo(sess)
	s.readPump(sess)

	s.cancelLivePointers(sess)
	s.hub.remove(sess)
	_ = conn.Close()
	s.logger.Info("WebSocket connection closed", "session", sess.id)
}

// readPump processes messages until the connection fails.
func (s *Server) readPump(sess *session) {
	conn := sess.conn
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "session", sess.id, "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.TextMessage {
			continue
		}
		if err := s.handleClientMessage(sess, data); err != nil {
			s.sendError(sess, err)
		}
	}
}

// writePump owns all writes to the connection.
func (s *Server) writePump(sess *session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage validates a message and turns it into a queued command.
func (s *Server) handleClientMessage(sess *session, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Type {
	case MsgViewport:
		if msg.Width <= 0 || msg.Height <= 0 {
			return fmt.Errorf("invalid viewport %gx%g", msg.Width, msg.Height)
		}
		sess.projection = input.ScreenProjection{Width: msg.Width, Height: msg.Height, FlipY: true}
		return nil

	case MsgPointer:
		phase, err := editor.ParsePhase(msg.Phase)
		if err != nil {
			return err
		}
		switch phase {
		case editor.PhaseDown:
			sess.live[msg.ID] = struct{}{}
		case editor.PhaseUp, editor.PhaseCancel:
			delete(sess.live, msg.ID)
		}
		pos := sess.projection.ScreenToViewport(geom.Point{X: msg.X, Y: msg.Y})
		return s.enqueue(command{pointer: &editor.PointerEvent{ID: sess.pointerID(msg.ID), Phase: phase, Position: pos}})

	case MsgSelect:
		indices := msg.Indices
		if indices == nil {
			indices = []int{}
		}
		return s.enqueue(command{selectIdx: indices})

	case MsgNudge:
		return s.enqueue(command{nudge: geom.Point{X: msg.DX, Y: msg.DY}})

	case MsgReset:
		return s.enqueue(command{reset: true})

	case MsgEdit:
		enabled := msg.Enabled
		return s.enqueue(command{edit: &enabled})
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

// cancelLivePointers releases corners held by a session that went away.
func (s *Server) cancelLivePointers(sess *session) {
	for id := range sess.live {
		_ = s.enqueue(command{pointer: &editor.PointerEvent{ID: sess.pointerID(id), Phase: editor.PhaseCancel}})
	}
	clear(sess.live)
}

func (s *Server) sendError(sess *session, err error) {
	s.sendTo(sess, ServerMessage{Type: MsgError, Error: err.Error()})
}

func (s *Server) sendStateTo(sess *session) {
	s.mu.Lock()
	msg := s.stateMessageLocked(MsgState)
	s.mu.Unlock()
	s.sendTo(sess, msg)
}

func (s *Server) sendTo(sess *session, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to encode websocket message", "error", err)
		return
	}
	select {
	case sess.send <- data:
	default:
		websocketMessagesTotal.WithLabelValues("dropped").Inc()
	}
}

func (s *Server) stateMessageLocked(kind string) ServerMessage {
	m := s.ctrl.Matrix()
	return ServerMessage{
		Type:    kind,
		Matrix:  &m,
		Corners: s.ctrl.Corners().Slice(),
		Editing: s.ctrl.Editing(),
	}
}

// broadcastLocked pushes the current homography to every session. Callers
// hold s.mu.
func (s *Server) broadcastLocked() {
	s.broadcastKindLocked(MsgHomography)
}

func (s *Server) broadcastState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastKindLocked(MsgState)
}

func (s *Server) broadcastKindLocked(kind string) {
	data, err := json.Marshal(s.stateMessageLocked(kind))
	if err != nil {
		s.logger.Error("Failed to encode websocket message", "type", kind, "error", err)
		return
	}
	s.hub.broadcast(data)
}
