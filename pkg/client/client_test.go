package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/orchestrator"
	"github.com/MikeDev101/roomlink/pkg/peer"
	"github.com/MikeDev101/roomlink/pkg/signaling"
	"github.com/MikeDev101/roomlink/pkg/structs"
)

func startRelay(t *testing.T) (*signaling.Server, string) {
	t.Helper()
	s := signaling.Initialize(config.Server{AllowedOrigins: []string{"*"}, OutboxSize: 64})
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
	return s, "ws://" + ln.Addr().String() + "/ws"
}

type participant struct {
	orch   *orchestrator.Orchestrator
	cancel context.CancelFunc
	done   chan struct{}
}

func join(t *testing.T, url, room, name string) *participant {
	t.Helper()
	factory, err := peer.NewFactory(peer.Settings{}, nil)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	link := &Link{}
	orch := orchestrator.New(orchestrator.Options{
		Transport: link,
		Factory: func(peerID string) (orchestrator.Conn, error) {
			conn, err := factory.Open(peerID)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := &participant{orch: orch, cancel: cancel, done: make(chan struct{})}
	session := &Session{
		URL:            url,
		Room:           room,
		Name:           name,
		ReconnectDelay: 50 * time.Millisecond,
		Link:           link,
		Orchestrator:   orch,
	}
	go func() {
		defer close(p.done)
		session.Run(ctx)
	}()
	t.Cleanup(func() {
		p.leave(t)
		orch.Close()
	})
	return p
}

func (p *participant) leave(t *testing.T) {
	t.Helper()
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stableWithOne(o *orchestrator.Orchestrator) bool {
	peers := o.Peers()
	return len(peers) == 1 && peers[0].Connected && peers[0].State == orchestrator.StateStable
}

func TestTwoParticipantsNegotiateThroughRelay(t *testing.T) {
	s, url := startRelay(t)

	alice := join(t, url, "r", "Alice")
	eventually(t, "Alice in room", func() bool {
		return len(manager.GetRoomPeers(s.Core(), "r")) == 1
	})

	bob := join(t, url, "r", "Bob")
	eventually(t, "both stable", func() bool {
		return stableWithOne(alice.orch) && stableWithOne(bob.orch)
	})

	a := alice.orch.Peers()[0]
	b := bob.orch.Peers()[0]
	if a.Role != orchestrator.RoleResponder || a.DisplayName != "Bob" {
		t.Fatalf("Alice sees %+v", a)
	}
	if b.Role != orchestrator.RoleInitiator || b.DisplayName != "Alice" {
		t.Fatalf("Bob sees %+v", b)
	}

	if err := alice.orch.SendChat("hi"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "chat delivered", func() bool {
		log := bob.orch.ChatLog()
		return len(log) == 1 && log[0].Message == "hi" && log[0].From == "Alice" && log[0].Timestamp > 0
	})
	if log := alice.orch.ChatLog(); len(log) != 1 || !log[0].Outgoing {
		t.Fatalf("Alice log = %+v", log)
	}

	bob.leave(t)
	eventually(t, "Bob gone", func() bool {
		return len(alice.orch.Peers()) == 0
	})
}

func TestLinkWithoutConnection(t *testing.T) {
	link := &Link{}
	if err := link.Emit(structs.EventKeepalive, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestClientKeepaliveRoundTrip(t *testing.T) {
	_, url := startRelay(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Emit(structs.EventKeepalive, "ping"); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-c.Incoming():
		if p.Event != structs.EventKeepalive || string(p.Payload) != `"ping"` {
			t.Fatalf("frame = %s %s", p.Event, p.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no keepalive echo")
	}

	c.Close()
	if err := c.Emit(structs.EventKeepalive, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("emit after close = %v", err)
	}
}

func TestSessionRetriesUntilRelayIsUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	link := &Link{}
	orch := orchestrator.New(orchestrator.Options{
		Transport: link,
		Factory: func(string) (orchestrator.Conn, error) {
			return nil, errors.New("unused")
		},
	})
	session := &Session{
		URL:            "ws://" + addr + "/ws",
		Room:           "r",
		Name:           "Solo",
		ReconnectDelay: 10 * time.Millisecond,
		Link:           link,
		Orchestrator:   orch,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := session.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want deadline exceeded", err)
	}
}
