package handlers

import (
	"github.com/MikeDev101/roomlink/pkg/manager"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/rs/zerolog/log"
)

// SIGNAL handles the "signal" event. The data blob is forwarded untouched to
// the target connection as {from, data}. An unknown or departed target is a
// routing miss: the message is dropped and the sender is told nothing, since
// the target may have disconnected a moment ago.
func SIGNAL(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	params := &structs.SignalParams{}
	if !decode(s, client, packet, params) {
		return
	}

	target := manager.GetByULID(s, params.TargetID)
	if target == nil {
		log.Debug().Str("client_id", client.ID).Str("target_id", params.TargetID).Msg("Signal target not found, dropping")
		return
	}

	err := message.Code(target, structs.EventSignal, &structs.RelayedSignal{
		From: client.ID,
		Data: params.Data,
	})
	if err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Str("target_id", params.TargetID).Msg("Relay signal error")
	}
}
