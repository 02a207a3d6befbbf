package handlers

import (
	"runtime"

	"github.com/MikeDev101/roomlink/pkg/constants"
	"github.com/MikeDev101/roomlink/pkg/signaling/message"
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// META replies with information about the server build.
func META(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	err := message.Code(
		client,
		structs.EventMeta,
		&structs.MetaInfo{ // Read system information from the OS
			OperatingSystem: runtime.GOOS,
			Architecture:    runtime.GOARCH,
			GoVersion:       runtime.Version(),
			ServerVersion:   constants.Version,
		},
	)
	if err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Msg("Send meta response error")
	}
}

// KEEPALIVE echoes the payload back to the caller.
func KEEPALIVE(s *structs.Server, client *structs.Client, packet *structs.Packet) {
	bytes, err := json.Marshal(packet)
	if err != nil {
		log.Error().Err(err).Msg("Encode keepalive error")
		return
	}
	if err := message.Send(client, bytes); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Msg("Send keepalive response error")
	}
}
