package handlers

import (
	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
)

// POS_UPDATE fans the caller's position out to every other member of the room.
// Delivery is best-effort; receivers keep whatever arrived last.
func POS_UPDATE(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	params := &structs.PosUpdate{}
	if !decode(s, client, packet, params) {
		return
	}

	others := manager.WithoutPeer(manager.GetRoomPeers(s, params.RoomID), client)
	message.Broadcast(others, structs.EventPeerPos, &structs.PeerPos{
		ID: client.ID,
		X:  params.X,
		Y:  params.Y,
	})
}
