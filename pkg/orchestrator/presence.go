package orchestrator

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/rs/zerolog/log"
)

type Position struct {
	X float64
	Y float64
}

// ChatEntry is one line of a room or private log. Timestamp is unix ms as
// stamped by the relay; lines we sent carry the local send time.
type ChatEntry struct {
	From      string
	FromID    string
	Message   string
	Timestamp int64
	Private   bool
	Outgoing  bool
}

// HandlePeerPos records the latest position of a peer. Updates for a peer
// that is neither a member nor has a session, such as one still in flight
// after its peer-left, are dropped.
func (o *Orchestrator) HandlePeerPos(pos structs.PeerPos) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, member := o.roster[pos.ID]
	_, connected := o.sessions[pos.ID]
	if !member && !connected {
		return
	}
	o.positions[pos.ID] = Position{X: pos.X, Y: pos.Y}
}

// HandleChat appends a room message to the chat log.
func (o *Orchestrator) HandleChat(msg structs.ChatMessage) {
	entry := ChatEntry{From: msg.From, Message: msg.Message, Timestamp: msg.Timestamp}
	o.mu.Lock()
	o.chat = append(o.chat, entry)
	o.mu.Unlock()
	o.chatReceived(entry)
}

// HandlePrivate appends a direct message to the log kept for its sender.
func (o *Orchestrator) HandlePrivate(msg structs.PrivateMessage) {
	entry := ChatEntry{
		From:      msg.From,
		FromID:    msg.FromID,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
		Private:   true,
	}
	o.mu.Lock()
	o.private[msg.FromID] = append(o.private[msg.FromID], entry)
	o.mu.Unlock()
	o.chatReceived(entry)
}

func (o *Orchestrator) chatReceived(entry ChatEntry) {
	if o.hooks.OnChat != nil {
		o.hooks.OnChat(entry)
	}
}

// SendChat sends a message to the whole room. The relay does not echo it, so
// it is logged locally.
func (o *Orchestrator) SendChat(message string) error {
	o.mu.Lock()
	room, name := o.room, o.name
	if room == "" {
		o.mu.Unlock()
		return ErrNotJoined
	}
	o.chat = append(o.chat, ChatEntry{From: name, Message: message, Timestamp: time.Now().UnixMilli(), Outgoing: true})
	o.mu.Unlock()

	return o.transport.Emit(structs.EventChatMessage, &structs.ChatParams{RoomID: room, Message: message, From: name})
}

// SendPrivate sends a message to one peer and logs it under that peer.
func (o *Orchestrator) SendPrivate(peerID, message string) error {
	o.mu.Lock()
	room, name := o.room, o.name
	if room == "" {
		o.mu.Unlock()
		return ErrNotJoined
	}
	o.private[peerID] = append(o.private[peerID], ChatEntry{
		From:      name,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Private:   true,
		Outgoing:  true,
	})
	o.mu.Unlock()

	return o.transport.Emit(structs.EventPrivateMessage, &structs.PrivateParams{
		RoomID:   room,
		TargetID: peerID,
		Message:  message,
		From:     name,
	})
}

// SetPosition updates the position the emitter reports.
func (o *Orchestrator) SetPosition(x, y float64) {
	o.mu.Lock()
	o.self = Position{X: x, Y: y}
	o.mu.Unlock()
}

// RunPositionEmitter sends this client's position every interval until ctx
// is done. Ticks before Join are skipped.
func (o *Orchestrator) RunPositionEmitter(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			room, pos, closed := o.room, o.self, o.closed
			o.mu.Unlock()
			if closed {
				return
			}
			if room == "" {
				continue
			}
			err := o.transport.Emit(structs.EventPosUpdate, &structs.PosUpdate{RoomID: room, X: pos.X, Y: pos.Y})
			if err != nil {
				log.Debug().Err(err).Msg("Send position error")
			}
		}
	}
}

// Positions returns a copy of the last known position of every peer.
func (o *Orchestrator) Positions() map[string]Position {
	o.mu.Lock()
	defer o.mu.Unlock()
	return maps.Clone(o.positions)
}

// ChatLog returns a copy of the room log in arrival order.
func (o *Orchestrator) ChatLog() []ChatEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.chat)
}

// PrivateLog returns a copy of the direct messages exchanged with one peer.
func (o *Orchestrator) PrivateLog(peerID string) []ChatEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.private[peerID])
}
