package peer

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

var ErrChannelNotOpen = errors.New("presence channel not open")

// Send marshals the given message using go-json and sends it as text over
// the presence channel.
func (c *Connection) Send(message any) error {
	if c.presence == nil || c.presence.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}

	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.presence.SendText(string(bytes))
}
