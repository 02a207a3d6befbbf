package session

import (
	"time"

	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/gofiber/contrib/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	WriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	PongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	MaxMessageSize = 64 * 1024
)

// Open creates a new client session on the server. It assigns a fresh ULID,
// registers the connection in the session table and starts the write pump
// when a websocket is attached. It returns the newly created client.
func Open(s *structs.Server, conn *websocket.Conn) *structs.Client {
	client := structs.NewClient(conn, ulid.Make().String(), s.OutboxSize)
	client.Session = s.WebsocketConnCounter.Add(1)

	// ULIDs are unique per process, so this only fails on a programming error.
	if err := manager.CreateSession(s, client); err != nil {
		log.Error().Err(err).Str("client_id", client.ID).Msg("Create session error")
	}

	if conn != nil {
		client.WriterDone = make(chan struct{})
		go writePump(client)
	}

	log.Info().Str("client_id", client.ID).Uint64("session", client.Session).Msg("Created new session")
	return client
}

// Close terminates a client's session. Every room the client belonged to is
// told the client left, the session entry is removed, the write pump is
// stopped and the websocket is closed. Abrupt disconnects take the same path:
// they are an implicit leave, never an error.
func Close(s *structs.Server, client *structs.Client) {
	if client == nil {
		log.Warn().Msg("Attempted to close nil client")
		return
	}

	PrepareToDisconnect(s, client)

	if err := manager.DeleteSession(s, client); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Msg("Delete session")
	}

	client.MarkClosed()
	if client.WriterDone != nil {
		<-client.WriterDone
	}
	if client.Conn != nil {
		// The pump may already have closed it after a write error.
		_ = client.Conn.Close()
	}

	log.Info().Str("client_id", client.ID).Uint64("session", client.Session).Msg("Closed session")
}

// PrepareToDisconnect broadcasts "peer-left" to the remaining members of every
// room the client joined, then removes the client from those rooms.
func PrepareToDisconnect(s *structs.Server, client *structs.Client) {
	gone := &structs.PeerGone{ID: client.ID}
	for _, roomid := range client.JoinedRooms() {
		manager.LeaveRoom(s, roomid, client, func(remaining []*structs.Client) {
			message.Broadcast(remaining, structs.EventPeerLeft, gone)
		})
		log.Debug().Str("client_id", client.ID).Str("room_id", roomid).Msg("Left room")
	}
}

// writePump is the only writer on the websocket. It drains the outbox and
// keeps the connection alive with pings until the session closes.
func writePump(client *structs.Client) {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		close(client.WriterDone)
	}()

	for {
		select {
		case <-client.Done:
			client.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case bytes := <-client.Outbox:
			client.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
				log.Debug().Err(err).Str("client_id", client.ID).Msg("Write error, closing connection")
				client.Conn.Close()
				<-client.Done
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Conn.Close()
				<-client.Done
				return
			}
		}
	}
}
