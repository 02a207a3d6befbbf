package main

import (
	"fmt"
	"io"
	"time"

	"github.com/MikeDev101/roomlink/pkg/orchestrator"
	"github.com/jedib0t/go-pretty/v6/table"
)

// renderPeers prints one row per known peer.
func renderPeers(w io.Writer, peers []orchestrator.PeerStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Peers (%d)", len(peers)))
	t.AppendHeader(table.Row{"ID", "Name", "Role", "State", "Queued", "Position"})

	for _, p := range peers {
		role, queued := "-", "-"
		if p.Connected {
			role = p.Role.String()
			queued = fmt.Sprint(p.QueuedCandidates)
		}
		state := p.State.String()
		if !p.Connected {
			state = "waiting"
		}
		pos := "-"
		if p.Position != nil {
			pos = fmt.Sprintf("%.1f, %.1f", p.Position.X, p.Position.Y)
		}
		t.AppendRow(table.Row{p.ID, p.DisplayName, role, state, queued, pos})
	}
	t.Render()
}

func formatChat(e orchestrator.ChatEntry) string {
	at := time.UnixMilli(e.Timestamp).Format(time.TimeOnly)
	if e.Private {
		return fmt.Sprintf("[%s] (private) %s <%s>: %s", at, e.From, e.FromID, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", at, e.From, e.Message)
}
