// Package client is the websocket side of a room participant: it dials the
// relay, pumps frames in both directions and keeps a room joined across
// reconnects.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outgoingSize   = 256
)

var (
	ErrNotConnected = errors.New("not connected to relay")
	ErrOutgoingFull = errors.New("outgoing queue full")
)

// Client manages one websocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan *structs.Packet
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once
}

// Dial connects to the relay at rawURL.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan *structs.Packet, 64),
		outgoing: make(chan []byte, outgoingSize),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// readPump decodes frames until the connection fails, then closes incoming.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Relay read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		packet := &structs.Packet{}
		if err := json.Unmarshal(raw, packet); err != nil {
			log.Warn().Err(err).Msg("Undecodable frame from relay")
			continue
		}

		select {
		case c.incoming <- packet:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued frames and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Emit queues one event for the relay without blocking.
func (c *Client) Emit(event string, payload any) error {
	frame, err := encode(event, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	select {
	case c.outgoing <- frame:
		return nil
	default:
		return ErrOutgoingFull
	}
}

// Incoming returns the channel of decoded frames. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *structs.Packet {
	return c.incoming
}

// Done is closed once the client is closing.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func encode(event string, payload any) ([]byte, error) {
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
