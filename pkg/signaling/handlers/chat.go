package handlers

import (
	"time"

	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/rs/zerolog/log"
)

// now stamps relayed chat. Tests replace it.
var now = time.Now

// CHAT_MESSAGE relays a room-wide chat line to every other member, stamped
// with the server receive time. The sender gets no echo.
func CHAT_MESSAGE(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	params := &structs.ChatParams{}
	if !decode(s, client, packet, params) {
		return
	}

	log.Debug().Str("client_id", client.ID).Str("room_id", params.RoomID).Msg("Chat message")

	others := manager.WithoutPeer(manager.GetRoomPeers(s, params.RoomID), client)
	message.Broadcast(others, structs.EventChatMessage, &structs.ChatMessage{
		From:      params.From,
		Message:   params.Message,
		Timestamp: now().UnixMilli(),
	})
}

// PRIVATE_MESSAGE relays a chat line to one connection. Unknown targets are
// dropped silently, like signals.
func PRIVATE_MESSAGE(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	params := &structs.PrivateParams{}
	if !decode(s, client, packet, params) {
		return
	}

	target := manager.GetByULID(s, params.TargetID)
	if target == nil {
		log.Debug().Str("client_id", client.ID).Str("target_id", params.TargetID).Msg("Private message target not found, dropping")
		return
	}

	err := message.Code(target, structs.EventPrivateMessage, &structs.PrivateMessage{
		From:      params.From,
		Message:   params.Message,
		Timestamp: now().UnixMilli(),
		FromID:    client.ID,
	})
	if err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Str("target_id", params.TargetID).Msg("Relay private message error")
	}
}
