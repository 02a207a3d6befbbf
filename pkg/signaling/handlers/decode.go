package handlers

import (
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// decode reads the packet payload into params and validates it. On failure the
// client gets a "violation" event and false is returned; the connection stays open.
func decode(s *structs.Server, client *structs.Client, packet *structs.Packet, params any) bool {
	if len(packet.Payload) == 0 {
		Violation(client, packet.Event+": missing payload")
		return false
	}
	if err := json.Unmarshal(packet.Payload, params); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Str("event", packet.Event).Msg("Payload decoding error")
		Violation(client, packet.Event+": payload decoding error")
		return false
	}
	if err := s.PacketValidator.Struct(params); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Str("event", packet.Event).Msg("Payload validation error")
		Violation(client, packet.Event+": "+err.Error())
		return false
	}
	return true
}

// Violation tells the client its frame was rejected.
func Violation(client *structs.Client, reason string) {
	if err := message.Code(client, structs.EventViolation, &structs.Violation{Reason: reason}); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Msg("Send violation error")
	}
}
