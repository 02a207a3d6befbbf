// Package orchestrator drives one client's peer connections from the events
// the relay delivers.
//
// Only the newcomer, the party that receives a "peers" snapshot, ever sends
// offers. Members that hear about an arrival through "peer-joined" wait and
// become responders when that peer's offer arrives. Every peer session runs
// its inbound signals one at a time, in arrival order, on its own goroutine,
// so different peers negotiate in parallel without sharing a lock across
// negotiation steps.
package orchestrator

import (
	"context"
	"slices"
	"sync"

	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Conn is the part of a WebRTC peer connection the orchestrator drives.
// *peer.Connection satisfies it.
type Conn interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	LocalDescription() *webrtc.SessionDescription
	RemoteDescription() *webrtc.SessionDescription
	SignalingState() webrtc.SignalingState
	OnLocalCandidate(f func(webrtc.ICECandidateInit))
	Close() error
}

// Factory opens a connection toward the given peer.
type Factory func(peerID string) (Conn, error)

// Transport sends one event to the relay. It must not block for long and must
// not call back into the orchestrator.
type Transport interface {
	Emit(event string, payload any) error
}

// Hooks are optional callbacks. They run outside the orchestrator's lock.
type Hooks struct {
	// OnCandidateFailure is told about every remote candidate that could not
	// be applied. The session carries on.
	OnCandidateFailure func(err *CandidateError)
	// OnNegotiationFailure is told about failed offer, answer or description steps.
	OnNegotiationFailure func(err *NegotiationError)
	// OnMembership runs after the set of known peers changed.
	OnMembership func()
	// OnChat runs for every room or private message received.
	OnChat func(entry ChatEntry)
}

// Options configure an Orchestrator.
type Options struct {
	Transport Transport
	Factory   Factory
	Hooks     Hooks
}

// PeerStatus is a snapshot of what the orchestrator knows about one peer.
type PeerStatus struct {
	ID                string
	DisplayName       string
	Connected         bool // a peer session exists
	Role              Role
	State             State
	QueuedCandidates  int
	CandidateFailures int
	Position          *Position
}

type Orchestrator struct {
	transport Transport
	factory   Factory
	hooks     Hooks

	mu        sync.Mutex
	room      string
	name      string
	closed    bool
	sessions  map[string]*peerSession
	roster    map[string]string // peer id -> display name
	positions map[string]Position
	self      Position
	chat      []ChatEntry
	private   map[string][]ChatEntry
	pending   int           // queued plus running steps across all sessions
	idle      chan struct{} // closed whenever pending drops to zero
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		transport: opts.Transport,
		factory:   opts.Factory,
		hooks:     opts.Hooks,
		sessions:  make(map[string]*peerSession),
		roster:    make(map[string]string),
		positions: make(map[string]Position),
		private:   make(map[string][]ChatEntry),
		idle:      make(chan struct{}),
	}
}

// Join asks the relay to add this client to room under name. The reply
// arrives as a "peers" event.
func (o *Orchestrator) Join(room, name string) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.room = room
	o.name = name
	o.mu.Unlock()

	log.Info().Str("room_id", room).Str("display_name", name).Msg("Joining room")
	return o.transport.Emit(structs.EventJoin, &structs.JoinParams{RoomID: room, DisplayName: name})
}

// Room returns the room passed to the last Join.
func (o *Orchestrator) Room() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.room
}

// Dispatch routes one inbound frame to its handler. Unknown events are
// ignored.
func (o *Orchestrator) Dispatch(packet *structs.Packet) error {
	if o.isClosed() {
		return ErrClosed
	}

	switch packet.Event {
	case structs.EventPeers:
		var peers []structs.PeerInfo
		if err := json.Unmarshal(packet.Payload, &peers); err != nil {
			return err
		}
		o.HandlePeers(peers)

	case structs.EventPeerJoined:
		var info structs.PeerInfo
		if err := json.Unmarshal(packet.Payload, &info); err != nil {
			return err
		}
		o.HandlePeerJoined(info)

	case structs.EventPeerLeft:
		var gone structs.PeerGone
		if err := json.Unmarshal(packet.Payload, &gone); err != nil {
			return err
		}
		o.HandlePeerLeft(gone.ID)

	case structs.EventSignal:
		var sig structs.RelayedSignal
		if err := json.Unmarshal(packet.Payload, &sig); err != nil {
			return err
		}
		var data structs.SignalData
		if err := json.Unmarshal(sig.Data, &data); err != nil {
			return err
		}
		o.HandleSignal(sig.From, data)

	case structs.EventPeerPos:
		var pos structs.PeerPos
		if err := json.Unmarshal(packet.Payload, &pos); err != nil {
			return err
		}
		o.HandlePeerPos(pos)

	case structs.EventChatMessage:
		var msg structs.ChatMessage
		if err := json.Unmarshal(packet.Payload, &msg); err != nil {
			return err
		}
		o.HandleChat(msg)

	case structs.EventPrivateMessage:
		var msg structs.PrivateMessage
		if err := json.Unmarshal(packet.Payload, &msg); err != nil {
			return err
		}
		o.HandlePrivate(msg)

	case structs.EventViolation:
		var v structs.Violation
		_ = json.Unmarshal(packet.Payload, &v)
		log.Warn().Str("reason", v.Reason).Msg("Relay rejected a frame")

	default:
		log.Debug().Str("event", packet.Event).Msg("Ignoring event")
	}
	return nil
}

// HandlePeers takes the snapshot sent in reply to Join. This client is the
// newcomer, so it opens an initiator session and sends an offer to every
// listed member.
func (o *Orchestrator) HandlePeers(peers []structs.PeerInfo) {
	for _, info := range peers {
		o.mu.Lock()
		o.roster[info.ID] = info.DisplayName
		_, exists := o.sessions[info.ID]
		o.mu.Unlock()
		if exists {
			log.Debug().Str("peer_id", info.ID).Msg("Peer session already open, not offering")
			continue
		}

		sess := o.open(info.ID, RoleInitiator)
		if sess == nil {
			continue
		}
		o.enqueue(sess, func() { o.sendOffer(sess) })
	}
	o.membershipChanged()
}

// HandlePeerJoined records a new member. It never starts a negotiation; the
// newcomer will offer.
func (o *Orchestrator) HandlePeerJoined(info structs.PeerInfo) {
	o.mu.Lock()
	o.roster[info.ID] = info.DisplayName
	o.mu.Unlock()

	log.Info().Str("peer_id", info.ID).Str("display_name", info.DisplayName).Msg("Peer joined, waiting for offer")
	o.membershipChanged()
}

// HandlePeerLeft closes and forgets everything about the peer, whatever its
// negotiation state. It does not wait for an in-flight step.
func (o *Orchestrator) HandlePeerLeft(peerID string) {
	o.mu.Lock()
	delete(o.roster, peerID)
	delete(o.positions, peerID)
	sess := o.detach(peerID)
	o.mu.Unlock()

	if sess != nil {
		sess.shutdown()
	}
	log.Info().Str("peer_id", peerID).Msg("Peer left")
	o.membershipChanged()
}

// HandleSignal queues an inbound negotiation payload on the sender's session.
// A sender without a session gets a fresh responder session in Idle.
func (o *Orchestrator) HandleSignal(from string, data structs.SignalData) {
	if from == "" {
		return
	}

	o.mu.Lock()
	sess := o.sessions[from]
	o.mu.Unlock()
	if sess == nil {
		if sess = o.open(from, RoleResponder); sess == nil {
			return
		}
	}

	switch {
	case data.SDP != nil:
		desc := *data.SDP
		switch desc.Type {
		case webrtc.SDPTypeOffer:
			o.enqueue(sess, func() { o.acceptOffer(sess, desc) })
		case webrtc.SDPTypeAnswer:
			o.enqueue(sess, func() { o.acceptAnswer(sess, desc) })
		default:
			log.Debug().Str("peer_id", from).Str("sdp_type", desc.Type.String()).Msg("Ignoring description")
		}
	case data.Candidate != nil:
		candidate := *data.Candidate
		o.enqueue(sess, func() { o.addCandidate(sess, candidate) })
	default:
		log.Debug().Str("peer_id", from).Msg("Empty signal")
	}
}

// Status reports what is known about one peer.
func (o *Orchestrator) Status(peerID string) (PeerStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, member := o.roster[peerID]
	if _, ok := o.sessions[peerID]; !ok && !member {
		return PeerStatus{}, false
	}
	return o.status(peerID), true
}

// Peers lists every known peer, members and sessions alike, ordered by id.
func (o *Orchestrator) Peers() []PeerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.roster)+len(o.sessions))
	for id := range o.roster {
		ids = append(ids, id)
	}
	for id := range o.sessions {
		if _, ok := o.roster[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]PeerStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.status(id))
	}
	return out
}

func (o *Orchestrator) status(peerID string) PeerStatus {
	st := PeerStatus{ID: peerID, DisplayName: o.roster[peerID]}
	if sess, ok := o.sessions[peerID]; ok {
		st.Connected = true
		st.Role = sess.role
		st.State = sess.state
		st.QueuedCandidates = len(sess.queued)
		st.CandidateFailures = sess.candidateFailures
		if st.DisplayName == "" {
			st.DisplayName = sess.displayName
		}
	} else {
		st.State = StateClosed
	}
	if pos, ok := o.positions[peerID]; ok {
		st.Position = &pos
	}
	return st
}

// Reset drops every peer session and the membership view. It is used when
// the relay connection is lost: the next connection has a new identity and
// rejoins from scratch. Chat logs are kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	sessions := make([]*peerSession, 0, len(o.sessions))
	for id := range o.sessions {
		sessions = append(sessions, o.detach(id))
	}
	clear(o.roster)
	clear(o.positions)
	o.mu.Unlock()

	for _, sess := range sessions {
		sess.shutdown()
	}
	if len(sessions) > 0 {
		log.Info().Int("peers", len(sessions)).Msg("Closed all peer sessions")
	}
	o.membershipChanged()
}

// Close resets the orchestrator and rejects further events.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.Reset()
}

// Flush waits until no negotiation step is queued or running.
func (o *Orchestrator) Flush(ctx context.Context) error {
	for {
		o.mu.Lock()
		if o.pending == 0 {
			o.mu.Unlock()
			return nil
		}
		idle := o.idle
		o.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) membershipChanged() {
	if o.hooks.OnMembership != nil {
		o.hooks.OnMembership()
	}
}
