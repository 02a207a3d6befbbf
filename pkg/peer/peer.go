// Package peer builds pion peer connections for the orchestrator.
package peer

import (
	"fmt"
	"sync"

	"github.com/MikeDev101/roomlink/pkg/config"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PresenceLabel names the negotiated data channel every connection carries.
// Both ends create it with the same id, so no in-band announcement is needed
// and an offer without media still has an application section.
const PresenceLabel = "presence"

const presenceID uint16 = 0

// Settings describe the ICE servers and policy of new connections.
type Settings struct {
	STUNServers  []string
	TURNServers  []string
	TURNUsername string
	TURNPassword string
	TURNOnly     bool
}

// SettingsFrom extracts peer settings from the client configuration.
func SettingsFrom(cfg config.Client) Settings {
	return Settings{
		STUNServers:  cfg.STUNServers,
		TURNServers:  cfg.TURNServers,
		TURNUsername: cfg.TURNUsername,
		TURNPassword: cfg.TURNPassword,
		TURNOnly:     cfg.TURNOnly,
	}
}

// Configuration builds the pion configuration. STUN servers are left out in
// TURN only mode, and the transport policy is set to relay.
func (s Settings) Configuration() webrtc.Configuration {
	policy := webrtc.ICETransportPolicyAll
	if s.TURNOnly {
		policy = webrtc.ICETransportPolicyRelay
	}

	var servers []webrtc.ICEServer
	if len(s.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           s.TURNServers,
			Username:       s.TURNUsername,
			Credential:     s.TURNPassword,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	if !s.TURNOnly && len(s.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: s.STUNServers})
	}

	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}

// Factory opens connections that share one pion API.
type Factory struct {
	api      *webrtc.API
	settings Settings

	// OnPresence, if set, receives every message on a presence channel.
	OnPresence func(peerID string, data []byte)
	// OnPresenceOpen, if set, runs when a presence channel opens.
	OnPresenceOpen func(conn *Connection)
}

// NewFactory registers the default codecs and interceptors and routes pion's
// logs through loggerFactory.
func NewFactory(settings Settings, loggerFactory logging.LoggerFactory) (*Factory, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	engine := webrtc.SettingEngine{}
	if loggerFactory != nil {
		engine.LoggerFactory = loggerFactory
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
		webrtc.WithSettingEngine(engine),
	)
	return &Factory{api: api, settings: settings}, nil
}

// Connection is a pion peer connection toward one remote peer.
type Connection struct {
	*webrtc.PeerConnection

	PeerID   string
	presence *webrtc.DataChannel
	log      zerolog.Logger

	mu     sync.Mutex
	onCand func(webrtc.ICECandidateInit)
}

// Open creates a connection toward peerID with its presence channel.
func (f *Factory) Open(peerID string) (*Connection, error) {
	pc, err := f.api.NewPeerConnection(f.settings.Configuration())
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Connection{
		PeerConnection: pc,
		PeerID:         peerID,
		log:            log.With().Str("peer_id", peerID).Logger(),
	}

	negotiated := true
	ordered := true
	id := presenceID
	c.presence, err = pc.CreateDataChannel(PresenceLabel, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
		Ordered:    &ordered,
	})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create presence channel: %w", err)
	}

	c.handle(f)
	return c, nil
}

func (c *Connection) handle(f *Factory) {
	c.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.log.Info().Str("state", s.String()).Msg("Peer connection state changed")
	})

	c.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		c.mu.Lock()
		cb := c.onCand
		c.mu.Unlock()
		if cb != nil {
			cb(candidate.ToJSON())
		}
	})

	d := c.presence
	d.OnError(func(err error) {
		c.log.Warn().Err(err).Str("label", d.Label()).Msg("Data channel error")
	})
	d.OnOpen(func() {
		c.log.Debug().Str("label", d.Label()).Msg("Data channel open")
		if f.OnPresenceOpen != nil {
			f.OnPresenceOpen(c)
		}
	})
	d.OnClose(func() {
		c.log.Debug().Str("label", d.Label()).Msg("Data channel closed")
	})
	d.OnMessage(func(msg webrtc.DataChannelMessage) {
		if f.OnPresence != nil {
			f.OnPresence(c.PeerID, msg.Data)
		}
	})
}

// OnLocalCandidate registers the callback for locally gathered candidates.
func (c *Connection) OnLocalCandidate(f func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCand = f
}
