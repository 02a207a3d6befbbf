package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MikeDev101/roomlink/pkg/orchestrator"
	"github.com/goccy/go-json"
)

type recorder struct {
	events []string
	last   json.RawMessage
}

func (r *recorder) Emit(event string, payload any) error {
	r.events = append(r.events, event)
	r.last, _ = json.Marshal(payload)
	return nil
}

func TestRunCommand(t *testing.T) {
	rec := &recorder{}
	orch := orchestrator.New(orchestrator.Options{Transport: rec})
	if err := orch.Join("r", "Alice"); err != nil {
		t.Fatal(err)
	}

	shown := 0
	show := func() { shown++ }

	tests := []struct {
		line    string
		event   string
		wantErr bool
	}{
		{"hello room", "chat-message", false},
		{"/msg 01HX hi there", "private-message", false},
		{"/msg 01HX", "", true},
		{"/pos 1.5 2", "", false},
		{"/pos one two", "", true},
		{"/peers", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		before := len(rec.events)
		err := runCommand(orch, tt.line, show)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.line, err)
		}
		if tt.event == "" {
			if len(rec.events) != before {
				t.Fatalf("%q emitted %v", tt.line, rec.events[before:])
			}
			continue
		}
		if len(rec.events) != before+1 || rec.events[before] != tt.event {
			t.Fatalf("%q: events = %v", tt.line, rec.events)
		}
	}

	if shown != 1 {
		t.Fatalf("peer table shown %d times", shown)
	}
	if !strings.Contains(string(rec.last), `"targetId":"01HX"`) || !strings.Contains(string(rec.last), `"message":"hi there"`) {
		t.Fatalf("private payload = %s", rec.last)
	}
}

func TestRenderPeers(t *testing.T) {
	var buf bytes.Buffer
	renderPeers(&buf, []orchestrator.PeerStatus{
		{ID: "01A", DisplayName: "Alice", Connected: true, Role: orchestrator.RoleInitiator, State: orchestrator.StateStable, Position: &orchestrator.Position{X: 1, Y: 2}},
		{ID: "01B", DisplayName: "Bob"},
	})
	out := buf.String()
	for _, want := range []string{"Peers (2)", "Alice", "initiator", "stable", "1.0, 2.0", "Bob", "waiting"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatChat(t *testing.T) {
	line := formatChat(orchestrator.ChatEntry{From: "Bob", FromID: "01B", Message: "psst", Timestamp: 0, Private: true})
	if !strings.Contains(line, "(private) Bob <01B>: psst") {
		t.Fatalf("line = %q", line)
	}
}
