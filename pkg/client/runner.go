package client

import (
	"context"
	"sync"
	"time"

	"github.com/MikeDev101/roomlink/pkg/orchestrator"
	"github.com/rs/zerolog/log"
)

// Link is an orchestrator transport that follows the current connection.
// Between connections every Emit fails with ErrNotConnected.
type Link struct {
	mu      sync.Mutex
	current *Client
}

func (l *Link) Emit(event string, payload any) error {
	l.mu.Lock()
	c := l.current
	l.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.Emit(event, payload)
}

func (l *Link) set(c *Client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = c
}

// Session keeps one orchestrator joined to a room.
type Session struct {
	URL            string
	Room           string
	Name           string
	ReconnectDelay time.Duration

	Link         *Link
	Orchestrator *orchestrator.Orchestrator
}

// Run connects, joins and dispatches inbound frames until ctx is done. When
// the connection drops every peer session is discarded, since the relay will
// hand out a new identity, and the room is joined again after
// ReconnectDelay.
func (s *Session) Run(ctx context.Context) error {
	l := log.With().Str("room_id", s.Room).Str("url", s.URL).Logger()

	for {
		c, err := Dial(ctx, s.URL)
		if err != nil {
			l.Warn().Err(err).Dur("retry_in", s.ReconnectDelay).Msg("Relay unreachable")
		} else {
			s.Link.set(c)
			if err := s.Orchestrator.Join(s.Room, s.Name); err != nil {
				l.Error().Err(err).Msg("Send join error")
			}
			l.Info().Msg("Connected to relay")

			stopped := s.serve(ctx, c)

			s.Link.set(nil)
			c.Close()
			s.Orchestrator.Reset()
			if stopped {
				return ctx.Err()
			}
			l.Warn().Dur("retry_in", s.ReconnectDelay).Msg("Relay connection lost")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
	}
}

// serve dispatches frames until the connection ends or ctx is done. It
// reports whether ctx ended it.
func (s *Session) serve(ctx context.Context, c *Client) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case packet, ok := <-c.Incoming():
			if !ok {
				return false
			}
			if err := s.Orchestrator.Dispatch(packet); err != nil {
				log.Debug().Err(err).Str("event", packet.Event).Msg("Dispatch error")
			}
		}
	}
}
