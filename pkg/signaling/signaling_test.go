package signaling

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
)

func startServer(t *testing.T, origins ...string) (*Server, string) {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := Initialize(config.Server{AllowedOrigins: origins, OutboxSize: 32})
	app := s.NewApp()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(2 * time.Second)
	})
	return s, ln.Addr().String()
}

func dial(t *testing.T, addr string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gws.Conn, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(&structs.Packet{Event: event, Payload: raw})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(gws.TextMessage, frame); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func recv(t *testing.T, conn *gws.Conn, event string, out any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read %s: %v", event, err)
	}
	var p structs.Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if p.Event != event {
		t.Fatalf("event = %q (%s), want %q", p.Event, p.Payload, event)
	}
	if out != nil {
		if err := json.Unmarshal(p.Payload, out); err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
	}
}

func TestHealthRoutes(t *testing.T) {
	s := Initialize(config.Server{AllowedOrigins: []string{"*"}, OutboxSize: 8})
	app := s.NewApp()

	for _, path := range []string{"/", "/health", "/healthz"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			t.Fatalf("%s: %d %q", path, resp.StatusCode, body)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("/ws without upgrade: %d", resp.StatusCode)
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	_, addr := startServer(t, "https://allowed.test")

	header := http.Header{"Origin": []string{"https://evil.test"}}
	_, resp, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws", header)
	if err == nil {
		t.Fatal("dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v", resp)
	}

	allowed := http.Header{"Origin": []string{"https://allowed.test"}}
	conn, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws", allowed)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
}

// Non-browser clients, the roomlink CLI included, send no Origin header.
func TestAllowsMissingOrigin(t *testing.T) {
	_, addr := startServer(t, "https://allowed.test")

	conn := dial(t, addr)
	send(t, conn, structs.EventKeepalive, "hello")
	var echoed string
	recv(t, conn, structs.EventKeepalive, &echoed)
	if echoed != "hello" {
		t.Fatalf("keepalive = %q", echoed)
	}
}

func TestRoomLifecycleOverWebsocket(t *testing.T) {
	_, addr := startServer(t)
	a := dial(t, addr)
	b := dial(t, addr)

	send(t, a, structs.EventJoin, &structs.JoinParams{RoomID: "r", DisplayName: "Alice"})
	var peers []structs.PeerInfo
	recv(t, a, structs.EventPeers, &peers)
	if len(peers) != 0 {
		t.Fatalf("A peers = %+v", peers)
	}

	send(t, b, structs.EventJoin, &structs.JoinParams{RoomID: "r", DisplayName: "Bob"})
	var bob structs.PeerInfo
	recv(t, a, structs.EventPeerJoined, &bob)
	if bob.DisplayName != "Bob" || bob.ID == "" {
		t.Fatalf("peer-joined = %+v", bob)
	}
	recv(t, b, structs.EventPeers, &peers)
	if len(peers) != 1 || peers[0].DisplayName != "Alice" {
		t.Fatalf("B peers = %+v", peers)
	}
	alice := peers[0]

	data := json.RawMessage(`{"candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}}`)
	send(t, b, structs.EventSignal, &structs.SignalParams{TargetID: alice.ID, Data: data})
	var sig structs.RelayedSignal
	recv(t, a, structs.EventSignal, &sig)
	if sig.From != bob.ID || string(sig.Data) != string(data) {
		t.Fatalf("signal = %+v", sig)
	}

	before := time.Now().UnixMilli()
	send(t, a, structs.EventChatMessage, &structs.ChatParams{RoomID: "r", Message: "hi", From: "Alice"})
	var chat structs.ChatMessage
	recv(t, b, structs.EventChatMessage, &chat)
	if chat.Message != "hi" || chat.From != "Alice" || chat.Timestamp < before {
		t.Fatalf("chat = %+v (sent at %d)", chat, before)
	}

	// Abrupt disconnect is an implicit leave.
	b.Close()
	var gone structs.PeerGone
	recv(t, a, structs.EventPeerLeft, &gone)
	if gone.ID != bob.ID {
		t.Fatalf("peer-left = %+v", gone)
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	_, addr := startServer(t)
	a := dial(t, addr)

	if err := a.WriteMessage(gws.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	var v structs.Violation
	recv(t, a, structs.EventViolation, &v)
	if v.Reason == "" {
		t.Fatal("violation without reason")
	}

	send(t, a, "teleport", map[string]string{})
	recv(t, a, structs.EventViolation, &v)

	send(t, a, structs.EventKeepalive, "still here")
	var echoed string
	recv(t, a, structs.EventKeepalive, &echoed)
	if echoed != "still here" {
		t.Fatalf("keepalive = %q", echoed)
	}
}

func TestHandleUnknownEvent(t *testing.T) {
	s := Initialize(config.Server{AllowedOrigins: []string{"*"}, OutboxSize: 8})
	c := structs.NewClient(nil, "A", 8)

	if err := s.Handle(c, []byte(`{"event":"nope"}`)); err != ErrUnknownEvent {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
	if err := s.Handle(c, []byte(`{"payload":1}`)); err == nil {
		t.Fatal("missing event should fail validation")
	}
	if len(c.Outbox) != 2 {
		t.Fatalf("violations queued = %d, want 2", len(c.Outbox))
	}
}
