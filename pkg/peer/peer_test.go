package peer

import (
	"strings"
	"testing"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/pion/webrtc/v4"
)

func TestConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		servers  int
		policy   webrtc.ICETransportPolicy
	}{
		{"stun only", Settings{STUNServers: config.DefaultSTUNServers}, 1, webrtc.ICETransportPolicyAll},
		{"stun and turn", Settings{STUNServers: config.DefaultSTUNServers, TURNServers: []string{"turn:t.example:3478"}}, 2, webrtc.ICETransportPolicyAll},
		{"turn only drops stun", Settings{STUNServers: config.DefaultSTUNServers, TURNServers: []string{"turn:t.example:3478"}, TURNOnly: true}, 1, webrtc.ICETransportPolicyRelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.settings.Configuration()
			if len(cfg.ICEServers) != tt.servers {
				t.Fatalf("servers = %+v", cfg.ICEServers)
			}
			if cfg.ICETransportPolicy != tt.policy {
				t.Fatalf("policy = %s", cfg.ICETransportPolicy)
			}
		})
	}
}

func TestOpenOffersPresenceChannel(t *testing.T) {
	f, err := NewFactory(Settings{}, nil)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	conn, err := f.Open("B")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	offer, err := conn.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if !strings.Contains(offer.SDP, "m=application") {
		t.Fatalf("offer has no application section:\n%s", offer.SDP)
	}
	if err := conn.Send("hello"); err != ErrChannelNotOpen {
		t.Fatalf("Send before open = %v, want ErrChannelNotOpen", err)
	}
}
