package rvp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/stream"
)

// ── Test Helpers ──────────────────────────────────────

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestServer wires a broker, actor registry, handler, and
// API-key auth into a server.
func setupTestServer(t *testing.T) (*Server, *Handler, *stream.Broker) {
	t.Helper()
	broker := stream.NewBroker(testLogger())
	actors := actor.NewRegistry()
	handler := NewHandler(actors, broker, testLogger())

	srv := NewServer(broker, handler,
		WithAuth(NewAPIKeyAuthenticator(APIKeyEntry{
			Token: "test-token",
			Identity: Identity{
				Subject: "test-user",
				Scopes:  []string{ScopeAll},
			},
		}, APIKeyEntry{
			Token: "limited-token",
			Identity: Identity{
				Subject: "limited-user",
				Scopes:  []string{ScopeRenderRead},
			},
		})),
		WithLogger(testLogger()),
	)
	return srv, handler, broker
}

// ── Server Unit Tests ─────────────────────────────────

func TestServer_NewServer(t *testing.T) {
	broker := stream.NewBroker(testLogger())
	handler := NewHandler(actor.NewRegistry(), broker, testLogger())

	srv := NewServer(broker, handler)

	if srv.broker != broker {
		t.Error("broker not set")
	}
	if srv.handler != handler {
		t.Error("handler not set")
	}
	if srv.conns == nil {
		t.Error("connection manager not created")
	}
	if srv.basePath != "/rvp" {
		t.Errorf("basePath = %q, want /rvp", srv.basePath)
	}
	// Default auth should be NoopAuthenticator.
	if srv.auth == nil {
		t.Error("auth not set")
	}
}

func TestServer_NewServerWithOptions(t *testing.T) {
	broker := stream.NewBroker(testLogger())
	handler := NewHandler(actor.NewRegistry(), broker, testLogger())
	auth := NewAPIKeyAuthenticator(APIKeyEntry{Token: "k", Identity: Identity{Subject: "s"}})

	srv := NewServer(broker, handler,
		WithAuth(auth),
		WithLogger(testLogger()),
		WithPath("/custom"),
		WithCodec(&MsgpackCodec{}),
	)

	if srv.basePath != "/custom" {
		t.Errorf("basePath = %q, want /custom", srv.basePath)
	}
	if srv.defaultCodec.Name() != CodecNameMsgpack {
		t.Errorf("codec = %q, want %q", srv.defaultCodec.Name(), CodecNameMsgpack)
	}
}

func TestServer_ConnectionManager(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	if srv.Connections().Count() != 0 {
		t.Errorf("initial connections = %d, want 0", srv.Connections().Count())
	}

	conn1 := NewConnection("conn-1", &Identity{Subject: "user1"}, &JSONCodec{})
	conn2 := NewConnection("conn-2", &Identity{Subject: "user2"}, &JSONCodec{})
	srv.Connections().Add(conn1)
	srv.Connections().Add(conn2)

	if srv.Connections().Count() != 2 {
		t.Errorf("connections = %d, want 2", srv.Connections().Count())
	}

	got, ok := srv.Connections().Get("conn-1")
	if !ok {
		t.Error("expected to find conn-1")
	}
	if got.Identity.Subject != "user1" {
		t.Errorf("subject = %q, want user1", got.Identity.Subject)
	}

	srv.Connections().Remove("conn-1")
	if srv.Connections().Count() != 1 {
		t.Errorf("connections after remove = %d, want 1", srv.Connections().Count())
	}

	if _, ok := srv.Connections().Get("conn-1"); ok {
		t.Error("expected conn-1 to be removed")
	}
}

// ── WebSocket Integration Tests ───────────────────────

// dialTestServer mounts the server on an HTTP test listener, dials the
// WebSocket endpoint, and sends the auth handshake.
func dialTestServer(t *testing.T, token string) net.Conn {
	t.Helper()
	srv, _, _ := setupTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rvp"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	authFrame, err := NewRequestFrame(&JSONCodec{}, "auth-1", MethodAuth, AuthRequest{Token: token})
	if err != nil {
		t.Fatalf("auth frame: %v", err)
	}
	writeClientFrame(t, conn, authFrame)

	return conn
}

func writeClientFrame(t *testing.T, conn io.ReadWriter, frame *Frame) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := wsutil.WriteClientText(conn, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readServerFrame(t *testing.T, conn io.ReadWriter) *Frame {
	t.Helper()
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return &f
}

func TestServer_WebSocketAuthHandshake(t *testing.T) {
	conn := dialTestServer(t, "test-token")

	resp := readServerFrame(t, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response, error = %v", resp.Type, resp.Error)
	}
	if resp.CorrelID != "auth-1" {
		t.Errorf("CorrelID = %q, want auth-1", resp.CorrelID)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Data, &authResp); err != nil {
		t.Fatalf("unmarshal auth response: %v", err)
	}
	if authResp.Format != CodecNameJSON {
		t.Errorf("format = %q, want json", authResp.Format)
	}
	if authResp.SessionID == "" {
		t.Error("expected non-empty session_id")
	}
}

func TestServer_WebSocketAuthRejected(t *testing.T) {
	conn := dialTestServer(t, "wrong-token")

	resp := readServerFrame(t, conn)
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want error", resp.Type)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeUnauthorized {
		t.Errorf("Error = %v, want code %d", resp.Error, ErrCodeUnauthorized)
	}
}

func TestServer_WebSocketStatsRoundTrip(t *testing.T) {
	conn := dialTestServer(t, "test-token")
	readServerFrame(t, conn) // auth response

	req, err := NewRequestFrame(&JSONCodec{}, "stats-1", MethodStats, nil)
	if err != nil {
		t.Fatalf("stats frame: %v", err)
	}
	writeClientFrame(t, conn, req)

	resp := readServerFrame(t, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want response, error = %v", resp.Type, resp.Error)
	}
	if resp.CorrelID != "stats-1" {
		t.Errorf("CorrelID = %q, want stats-1", resp.CorrelID)
	}

	var stats map[string]any
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if _, ok := stats["broker"]; !ok {
		t.Error("expected broker stats")
	}
}

func TestServer_WebSocketPingPong(t *testing.T) {
	conn := dialTestServer(t, "test-token")
	readServerFrame(t, conn) // auth response

	ping := &Frame{ID: "ping-1", Type: FramePing, Timestamp: time.Now().UTC()}
	writeClientFrame(t, conn, ping)

	pong := readServerFrame(t, conn)
	if pong.Type != FramePong {
		t.Fatalf("Type = %q, want pong", pong.Type)
	}
	if pong.CorrelID != "ping-1" {
		t.Errorf("CorrelID = %q, want ping-1", pong.CorrelID)
	}
}

func TestServer_WebSocketScopeEnforced(t *testing.T) {
	conn := dialTestServer(t, "limited-token")
	readServerFrame(t, conn) // auth response

	// limited-token only has render:read; setup needs render:write.
	req, err := NewRequestFrame(&JSONCodec{}, "setup-1", MethodActorSetup, SetupRequest{})
	if err != nil {
		t.Fatalf("setup frame: %v", err)
	}
	writeClientFrame(t, conn, req)

	resp := readServerFrame(t, conn)
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want error", resp.Type)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeForbidden {
		t.Errorf("Error = %v, want code %d", resp.Error, ErrCodeForbidden)
	}
}

func TestServer_WebSocketSubscribeReceivesEvents(t *testing.T) {
	srv, _, broker := setupTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rvp"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	authFrame, _ := NewRequestFrame(&JSONCodec{}, "auth-1", MethodAuth, AuthRequest{Token: "test-token"})
	writeClientFrame(t, conn, authFrame)
	readServerFrame(t, conn) // auth response

	subFrame, _ := NewRequestFrame(&JSONCodec{}, "sub-1", MethodSubscribe, SubscribeRequest{Channel: stream.TopicCluster})
	writeClientFrame(t, conn, subFrame)
	resp := readServerFrame(t, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("subscribe Type = %q, want response, error = %v", resp.Type, resp.Error)
	}

	// Publish a cluster event through the broker's extension hook and
	// expect it forwarded as an event frame.
	if err := broker.OnWorkerLeft(context.Background(), id.NewWorkerID()); err != nil {
		t.Fatalf("worker hook: %v", err)
	}

	evt := readServerFrame(t, conn)
	if evt.Type != FrameEvent {
		t.Fatalf("Type = %q, want event", evt.Type)
	}
	var payload stream.Event
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if payload.Type != stream.EventWorkerLeft {
		t.Errorf("event type = %s, want worker.left", payload.Type)
	}
}

// The request loop and the event forwarder write the same connection;
// concurrent writes must come out as whole, parseable frames.
func TestConnWriterSerializesConcurrentWrites(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	codec := &JSONCodec{}
	w := &connWriter{conn: server}

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range perWriter {
				frame, err := NewEventFrame(codec, "frames", map[string]int{"writer": n, "seq": j})
				if err != nil {
					t.Errorf("event frame: %v", err)
					return
				}
				if writeErr := w.write(codec, frame); writeErr != nil {
					t.Errorf("write: %v", writeErr)
					return
				}
			}
		}(i)
	}

	for read := 0; read < writers*perWriter; read++ {
		data, err := wsutil.ReadServerText(client)
		if err != nil {
			t.Fatalf("read frame %d: %v", read, err)
		}
		if _, decErr := codec.Decode(data); decErr != nil {
			t.Fatalf("frame %d corrupted: %v", read, decErr)
		}
	}
	wg.Wait()
}

// ── HTTP RPC Tests ────────────────────────────────────

func TestServer_HTTPRPCStats(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	frame := &Frame{
		ID:        "rpc-1",
		Type:      FrameRequest,
		Method:    MethodStats,
		Token:     "test-token",
		Timestamp: time.Now().UTC(),
	}
	body, _ := json.Marshal(frame)

	resp, err := http.Post(ts.URL+"/rvp/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var respFrame Frame
	if err := json.NewDecoder(resp.Body).Decode(&respFrame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if respFrame.Type != FrameResponse {
		t.Errorf("Type = %q, want response, error = %v", respFrame.Type, respFrame.Error)
	}
	if respFrame.CorrelID != "rpc-1" {
		t.Errorf("CorrelID = %q, want rpc-1", respFrame.CorrelID)
	}
}

func TestServer_HTTPRPCUnauthorized(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	frame := &Frame{
		ID:     "rpc-1",
		Type:   FrameRequest,
		Method: MethodStats,
		Token:  "bad-token",
	}
	body, _ := json.Marshal(frame)

	resp, err := http.Post(ts.URL+"/rvp/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_HTTPRPCMethodNotAllowed(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/rvp/rpc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

// ── Connection Tests ──────────────────────────────────

func TestConnection_Subscriptions(t *testing.T) {
	conn := NewConnection("test-conn", &Identity{Subject: "user"}, &JSONCodec{})

	if len(conn.Subscriptions()) != 0 {
		t.Errorf("initial subscriptions = %d, want 0", len(conn.Subscriptions()))
	}

	conn.AddSubscription("frames")
	conn.AddSubscription("cluster")

	if subs := conn.Subscriptions(); len(subs) != 2 {
		t.Errorf("subscriptions = %d, want 2", len(subs))
	}

	conn.RemoveSubscription("frames")
	if subs := conn.Subscriptions(); len(subs) != 1 {
		t.Errorf("subscriptions after remove = %d, want 1", len(subs))
	}
}

func TestConnection_Touch(t *testing.T) {
	conn := NewConnection("test-conn", &Identity{Subject: "user"}, &JSONCodec{})
	initial := conn.LastActivity.Load().(time.Time)

	time.Sleep(10 * time.Millisecond)
	conn.Touch()

	updated := conn.LastActivity.Load().(time.Time)
	if !updated.After(initial) {
		t.Error("Touch did not update LastActivity")
	}
}
