package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialTestServer(t *testing.T, s *Server) *wsClient {
	t.Helper()
	ts := httptest.NewServer(newTestMux(s))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}
	greeting := c.read()
	require.Equal(t, MsgState, greeting.Type)
	return c
}

func (c *wsClient) send(msg ClientMessage) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) read() ServerMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ServerMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

// stepUntil waits for n queued commands and applies them in one tick.
func stepUntil(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.commands) >= n
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, n, s.Step())
}

func TestWebSocket_InitialState(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ts := httptest.NewServer(newTestMux(s))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgState, msg.Type)
	require.NotNil(t, msg.Matrix)
	assert.True(t, msg.Matrix.ApproxEqual(geom.Identity(), 1e-9))
	assert.Equal(t, geom.Canonical().Slice(), msg.Corners)
	assert.False(t, msg.Editing)
}

func TestWebSocket_DragBroadcastsHomography(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	c.send(ClientMessage{Type: MsgEdit, Enabled: true})
	stepUntil(t, s, 1)
	state := c.read()
	assert.Equal(t, MsgState, state.Type)
	assert.True(t, state.Editing)

	// 100x100 screen with a top-left origin: (100,0) is viewport (1,1)
	c.send(ClientMessage{Type: MsgViewport, Width: 100, Height: 100})
	c.send(ClientMessage{Type: MsgPointer, Phase: "down", ID: 7, X: 100, Y: 0})
	c.send(ClientMessage{Type: MsgPointer, Phase: "move", ID: 7, X: 90, Y: 10})
	c.send(ClientMessage{Type: MsgPointer, Phase: "up", ID: 7, X: 90, Y: 10})
	stepUntil(t, s, 3)

	msg := c.read()
	require.Equal(t, MsgHomography, msg.Type)
	require.Len(t, msg.Corners, 4)
	assert.InDelta(t, 0.9, msg.Corners[2].X, 1e-9)
	assert.InDelta(t, 0.9, msg.Corners[2].Y, 1e-9)

	require.NotNil(t, msg.Matrix)
	mapped, ok := msg.Matrix.Apply(geom.Point{X: 0.9, Y: 0.9})
	require.True(t, ok)
	assert.InDelta(t, 1, mapped.X, 1e-9)
	assert.InDelta(t, 1, mapped.Y, 1e-9)
}

func TestWebSocket_CommandsIgnoredWhenIdle(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	c.send(ClientMessage{Type: MsgNudge, DX: 1})
	c.send(ClientMessage{Type: MsgReset})
	stepUntil(t, s, 2)

	assert.Equal(t, geom.Canonical(), s.ctrl.Corners())
}

func TestWebSocket_SelectAndNudge(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	c.send(ClientMessage{Type: MsgEdit, Enabled: true})
	c.send(ClientMessage{Type: MsgSelect, Indices: []int{1}})
	c.send(ClientMessage{Type: MsgNudge, DX: 1, DY: 0})
	c.send(ClientMessage{Type: MsgNudge, DX: 1, DY: 0})
	stepUntil(t, s, 4)

	msg := c.read()
	require.Equal(t, MsgHomography, msg.Type)
	assert.InDelta(t, 1.002, msg.Corners[1].X, 1e-12)
	assert.Equal(t, geom.Canonical()[0], msg.Corners[0])
}

func TestWebSocket_EmptySelectClearsSelection(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	c.send(ClientMessage{Type: MsgEdit, Enabled: true})
	c.send(ClientMessage{Type: MsgPointer, Phase: "down", ID: 1, X: 0, Y: 0})
	stepUntil(t, s, 2)

	s.mu.Lock()
	assert.True(t, s.ctrl.Editor().Selected()[0], "pointer selects corner 0")
	s.mu.Unlock()

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"select"}`)))
	stepUntil(t, s, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, [geom.CornerCount]bool{}, s.ctrl.Editor().Selected())
	assert.Len(t, s.ctrl.Editor().ActivePointers(), 1, "the pointer keeps its claim")
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"malformed json", `{"type":`, "failed to parse message"},
		{"unknown type", `{"type":"teleport"}`, "unknown message type"},
		{"bad phase", `{"type":"pointer","phase":"hover"}`, "unknown pointer phase"},
		{"bad viewport", `{"type":"viewport","width":0,"height":10}`, "invalid viewport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := c.read()
			assert.Equal(t, MsgError, msg.Type)
			assert.Contains(t, msg.Error, tt.want)
		})
	}
}

func TestWebSocket_DisconnectCancelsPointers(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	c := dialTestServer(t, s)

	c.send(ClientMessage{Type: MsgEdit, Enabled: true})
	c.send(ClientMessage{Type: MsgPointer, Phase: "down", ID: 1, X: 0, Y: 0})
	stepUntil(t, s, 2)

	s.mu.Lock()
	assert.Len(t, s.ctrl.Editor().ActivePointers(), 1)
	s.mu.Unlock()

	require.NoError(t, c.conn.Close())
	stepUntil(t, s, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.ctrl.Editor().ActivePointers())
}

func TestSession_PointerIDNamespacing(t *testing.T) {
	a := &session{id: 1}
	b := &session{id: 2}

	assert.NotEqual(t, a.pointerID(5), b.pointerID(5))
	assert.Equal(t, editor.PointerID(1<<32|5), a.pointerID(5))
}

func TestServer_EnqueueFull(t *testing.T) {
	s, _ := newTestServer(t, Config{QueueSize: 1})

	require.NoError(t, s.enqueue(command{reset: true}))
	assert.ErrorIs(t, s.enqueue(command{reset: true}), ErrQueueFull)
	assert.Equal(t, 1, s.Step())
	assert.NoError(t, s.enqueue(command{reset: true}))
}

func TestFrameBuilder_PreservesOrder(t *testing.T) {
	var b frameBuilder
	down := editor.PointerEvent{ID: 1, Phase: editor.PhaseDown}

	require.True(t, b.add(command{selectIdx: []int{0}}))
	require.True(t, b.add(command{nudge: geom.Point{X: 1}}))
	// a later pointer or reset would otherwise run before the nudge
	assert.False(t, b.add(command{pointer: &down}))
	assert.False(t, b.add(command{reset: true}))
	assert.False(t, b.add(command{selectIdx: []int{1}}))
	require.True(t, b.add(command{nudge: geom.Point{Y: 1}}))

	f := b.take()
	assert.Equal(t, []int{0}, f.Select)
	assert.Equal(t, geom.Point{X: 1, Y: 1}, f.Nudge)
	assert.True(t, b.empty())

	require.True(t, b.add(command{pointer: &down}))
	require.True(t, b.add(command{reset: true}))
	assert.Len(t, b.take().Pointers, 1)
}

func TestServerMessage_JSON(t *testing.T) {
	m := geom.Identity()
	data, err := json.Marshal(ServerMessage{Type: MsgHomography, Matrix: &m, Editing: true})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"homography"`)
	assert.Contains(t, string(data), `"editing":true`)
	assert.NotContains(t, string(data), `"error"`)
}
