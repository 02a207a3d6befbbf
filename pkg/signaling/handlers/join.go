package handlers

import (
	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/rs/zerolog/log"
)

// JOIN handles the "join" event, which registers the caller in a room.
//
// The display name is stored verbatim. Inside the room lock the other members
// are sent "peer-joined" first, then the caller gets "peers": every other member
// in join order, never the caller itself. A second client joining concurrently
// is therefore either in this snapshot or announces itself to this client
// afterwards, never both and never neither.
func JOIN(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	params := &structs.JoinParams{}
	if !decode(s, client, packet, params) {
		return
	}

	client.SetDisplayName(params.DisplayName)
	l := log.With().Str("client_id", client.ID).Str("room_id", params.RoomID).Logger()
	l.Info().Str("display_name", params.DisplayName).Msg("Client joining room")

	manager.JoinRoom(s, params.RoomID, client, func(others []*structs.Client) {
		message.Broadcast(others, structs.EventPeerJoined, client.Info())

		peers := manager.PeerList(others)
		if err := message.Code(client, structs.EventPeers, peers); err != nil {
			l.Warn().Err(err).Msg("Send peers snapshot error")
			return
		}
		l.Debug().Int("peers", len(peers)).Msg("Sent peers snapshot")
	})
}
