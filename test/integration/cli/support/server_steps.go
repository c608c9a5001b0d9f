package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/server"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const wsReadTimeout = 2 * time.Second

// HTTPTestServerWrapper runs a keystone server on an httptest listener with
// its editing loop.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Store      *store.MemoryStore

	cancel context.CancelFunc
	done   chan struct{}
	conn   *websocket.Conn
	last   server.ServerMessage
}

// Close disconnects clients and stops the loop and the listener.
func (w *HTTPTestServerWrapper) Close() {
	if w.conn != nil {
		_ = w.conn.Close()
	}
	_ = w.TestServer.Close()
	w.cancel()
	<-w.done
	w.Server.Close()
}

func (testCtx *TestContext) aRunningKeystoneServer() error {
	st := store.NewMemoryStore()
	renderer := warp.NewRenderer(32, 32)
	ctrl, err := effect.New(effect.Options{
		Store:    st,
		Editor:   editor.Config{SelectionRadius: 0.04, Logger: quietLogger()},
		Renderer: renderer,
		Logger:   quietLogger(),
	})
	if err != nil {
		return err
	}

	srv := server.NewServer(ctrl, renderer, warp.Grid(32, 32, 4), server.Config{
		Tick:   5 * time.Millisecond,
		Logger: quietLogger(),
	})
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	w := &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		Store:      st,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		srv.Run(ctx)
	}()
	testCtx.HTTPTestServer = w
	return nil
}

func (testCtx *TestContext) server() (*HTTPTestServerWrapper, error) {
	if testCtx.HTTPTestServer == nil {
		return nil, errors.New("no server running")
	}
	return testCtx.HTTPTestServer, nil
}

func (testCtx *TestContext) iSendARequestWithBody(method, path, body string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, w.Server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := w.Server.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	return nil
}

func (testCtx *TestContext) iSendARequest(method, path string) error {
	return testCtx.iSendARequestWithBody(method, path, "")
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expected) {
		return fmt.Errorf("response does not contain %q\nBody: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theServerCornersShouldBe(corners string) error {
	if err := testCtx.iSendARequest(http.MethodGet, "/corners"); err != nil {
		return err
	}
	var resp server.CornersResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return err
	}
	want, err := parseCorners(corners)
	if err != nil {
		return err
	}
	got, ok := geom.CornersFromSlice(resp.Corners)
	if !ok {
		return fmt.Errorf("server returned %d corners", len(resp.Corners))
	}
	return cornersEqual(got, want)
}

func (testCtx *TestContext) aWebSocketClientIsConnected() error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	url := "ws" + strings.TrimPrefix(w.Server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	w.conn = conn
	return testCtx.theClientShouldReceiveAMessage(server.MsgState)
}

func (testCtx *TestContext) theClientSends(message string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	if w.conn == nil {
		return errors.New("no WebSocket client connected")
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// theClientShouldReceiveAMessage reads until a message of the given type
// arrives.
func (testCtx *TestContext) theClientShouldReceiveAMessage(kind string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	if w.conn == nil {
		return errors.New("no WebSocket client connected")
	}
	deadline := time.Now().Add(wsReadTimeout)
	for {
		if err := w.conn.SetReadDeadline(deadline); err != nil {
			return err
		}
		var msg server.ServerMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("no %q message received: %w", kind, err)
		}
		if msg.Type == kind {
			w.last = msg
			return nil
		}
	}
}

func (testCtx *TestContext) theReceivedCornerShouldBeAt(idx int, at string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	want, err := parsePoint(at)
	if err != nil {
		return err
	}
	if idx >= len(w.last.Corners) {
		return fmt.Errorf("message carries %d corners", len(w.last.Corners))
	}
	if got := w.last.Corners[idx]; !closeTo(got, want) {
		return fmt.Errorf("received corner %d at %v, want %v", idx, got, want)
	}
	return nil
}

func (testCtx *TestContext) theReceivedErrorShouldMention(text string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	if !strings.Contains(w.last.Error, text) {
		return fmt.Errorf("error %q does not mention %q", w.last.Error, text)
	}
	return nil
}

func (testCtx *TestContext) theServerStoreShouldHoldCorners(corners string) error {
	w, err := testCtx.server()
	if err != nil {
		return err
	}
	want, err := parseCorners(corners)
	if err != nil {
		return err
	}
	if !w.Store.Exists(store.DefaultKey) {
		return errors.New("server store holds no corners")
	}
	return cornersEqual(store.LoadCorners(w.Store, store.DefaultKey, nil), want)
}

// RegisterServerSteps registers the HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running keystone server$`, testCtx.aRunningKeystoneServer)
	sc.Step(`^I send a (GET|PUT|POST|DELETE) request to "([^"]*)"$`, testCtx.iSendARequest)
	sc.Step(`^I send a (GET|PUT|POST|DELETE) request to "([^"]*)" with body '([^']*)'$`, testCtx.iSendARequestWithBody)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the server corners should be "([^"]*)"$`, testCtx.theServerCornersShouldBe)
	sc.Step(`^a WebSocket client is connected$`, testCtx.aWebSocketClientIsConnected)
	sc.Step(`^the client sends '([^']*)'$`, testCtx.theClientSends)
	sc.Step(`^the client should receive a "([^"]*)" message$`, testCtx.theClientShouldReceiveAMessage)
	sc.Step(`^the received corner (\d+) should be at "([^"]*)"$`, testCtx.theReceivedCornerShouldBeAt)
	sc.Step(`^the received error should mention "([^"]*)"$`, testCtx.theReceivedErrorShouldMention)
	sc.Step(`^the server store should hold corners "([^"]*)"$`, testCtx.theServerStoreShouldHoldCorners)
}
