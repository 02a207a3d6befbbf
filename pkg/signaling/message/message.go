package message

import (
	"errors"

	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrOutboxFull   = errors.New("client outbox full")
)

// Send queues raw bytes on the client's outbox. It never blocks: a closed
// client or a full outbox drops the message and reports why.
func Send(client *structs.Client, bytes []byte) error {
	if client == nil {
		log.Debug().Msg("Got a nil client when sending message")
		return nil
	}

	select {
	case <-client.Done:
		return ErrClientClosed
	default:
	}

	select {
	case client.Outbox <- bytes:
		return nil
	default:
		log.Warn().Str("client_id", client.ID).Msg("Outbox full, dropping message")
		return ErrOutboxFull
	}
}

// Encode builds a frame with the given event and payload using go-json.
func Encode(event string, payload any) ([]byte, error) {
	packet := &structs.Packet{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		packet.Payload = raw
	}
	return json.Marshal(packet)
}

// Code sends an event to a single client.
func Code(client *structs.Client, event string, payload any) error {
	bytes, err := Encode(event, payload)
	if err != nil {
		return err
	}
	return Send(client, bytes)
}

// Broadcast sends one event to every given client. The frame is encoded once.
// Per-recipient failures are logged and skipped.
func Broadcast(clients []*structs.Client, event string, payload any) {
	if len(clients) == 0 {
		return
	}
	bytes, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Encode broadcast error")
		return
	}
	for _, client := range clients {
		if err := Send(client, bytes); err != nil {
			log.Debug().Err(err).Str("client_id", client.ID).Str("event", event).Msg("Broadcast skipped client")
		}
	}
}
