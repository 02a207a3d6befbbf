package orchestrator

import (
	"github.com/MikeDev101/roomlink/pkg/structs"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// peerSession is the per-peer state. Every field except conn, id and role is
// guarded by the orchestrator's mu.
type peerSession struct {
	id          string
	displayName string
	role        Role
	conn        Conn
	log         zerolog.Logger

	state             State
	queued            []webrtc.ICECandidateInit
	candidateFailures int
	closed            bool

	steps   []func()
	running bool
}

// open creates a session for peerID and registers it. It returns nil if the
// factory fails or the orchestrator is closed.
func (o *Orchestrator) open(peerID string, role Role) *peerSession {
	conn, err := o.factory(peerID)
	if err != nil {
		log.Error().Err(err).Str("peer_id", peerID).Msg("Open peer connection error")
		return nil
	}

	sess := &peerSession{
		id:   peerID,
		role: role,
		conn: conn,
		log:  log.With().Str("peer_id", peerID).Str("role", role.String()).Logger(),
	}

	// Local candidates go out as soon as they exist, whatever the state.
	conn.OnLocalCandidate(func(candidate webrtc.ICECandidateInit) {
		o.signal(sess, structs.SignalData{Candidate: &candidate})
	})

	o.mu.Lock()
	if existing, ok := o.sessions[peerID]; ok || o.closed {
		sess.closed = true
		o.mu.Unlock()
		_ = conn.Close()
		if ok {
			return existing
		}
		return nil
	}
	sess.displayName = o.roster[peerID]
	o.sessions[peerID] = sess
	o.mu.Unlock()

	sess.log.Debug().Msg("Opened peer session")
	return sess
}

// detach removes the session from the active set and marks it closed. Queued
// steps are discarded. The caller holds mu and must call shutdown afterwards.
func (o *Orchestrator) detach(peerID string) *peerSession {
	sess, ok := o.sessions[peerID]
	if !ok {
		return nil
	}
	delete(o.sessions, peerID)

	sess.closed = true
	sess.state = StateClosed
	sess.queued = nil
	o.settle(len(sess.steps))
	sess.steps = nil
	return sess
}

// shutdown closes the underlying connection. An in-flight step sees the
// closed flag and stops at its next check.
func (s *peerSession) shutdown() {
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Close peer connection")
	}
	s.log.Debug().Msg("Closed peer session")
}

// enqueue appends a step to the session's queue and starts the runner if
// it is not already going.
func (o *Orchestrator) enqueue(sess *peerSession, step func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.closed {
		return
	}
	sess.steps = append(sess.steps, step)
	o.pending++
	if !sess.running {
		sess.running = true
		go o.run(sess)
	}
}

// run executes queued steps one after another until the queue is empty.
func (o *Orchestrator) run(sess *peerSession) {
	for {
		o.mu.Lock()
		if len(sess.steps) == 0 {
			sess.running = false
			o.mu.Unlock()
			return
		}
		step := sess.steps[0]
		sess.steps = sess.steps[1:]
		o.mu.Unlock()

		step()

		o.mu.Lock()
		o.settle(1)
		o.mu.Unlock()
	}
}

// settle marks n steps as finished. The caller holds mu.
func (o *Orchestrator) settle(n int) {
	if n <= 0 {
		return
	}
	o.pending -= n
	if o.pending == 0 {
		close(o.idle)
		o.idle = make(chan struct{})
	}
}

// alive reports whether the session is still in the active set.
func (o *Orchestrator) alive(sess *peerSession) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !sess.closed
}

// setState moves a live session to next. It returns false if the session
// was closed meanwhile.
func (o *Orchestrator) setState(sess *peerSession, next State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.closed {
		return false
	}
	sess.log.Debug().Str("from", sess.state.String()).Str("to", next.String()).Msg("Negotiation state")
	sess.state = next
	return true
}

// signal sends a negotiation payload to the session's peer unless the
// session was closed.
func (o *Orchestrator) signal(sess *peerSession, data structs.SignalData) {
	raw, err := json.Marshal(&data)
	if err != nil {
		sess.log.Error().Err(err).Msg("Encode signal error")
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.closed {
		return
	}
	err = o.transport.Emit(structs.EventSignal, &structs.SignalParams{
		RoomID:   o.room,
		TargetID: sess.id,
		Data:     raw,
	})
	if err != nil {
		sess.log.Warn().Err(err).Msg("Send signal error")
	}
}

// sendOffer runs Idle -> OfferSent for an initiator.
func (o *Orchestrator) sendOffer(sess *peerSession) {
	offer, err := sess.conn.CreateOffer(nil)
	if err != nil {
		o.negotiationFailed(sess, "create offer", err)
		return
	}
	if !o.alive(sess) {
		return
	}
	if err := sess.conn.SetLocalDescription(offer); err != nil {
		o.negotiationFailed(sess, "set local offer", err)
		return
	}
	if !o.setState(sess, StateOfferSent) {
		return
	}
	o.signal(sess, structs.SignalData{SDP: described(sess.conn, offer)})
	sess.log.Info().Msg("Sent offer")
}

// acceptOffer runs Idle -> AnswerPending -> Stable. An offer is also taken in
// Stable for renegotiation. In OfferSent it is stale and ignored.
func (o *Orchestrator) acceptOffer(sess *peerSession, offer webrtc.SessionDescription) {
	o.mu.Lock()
	prev := sess.state
	if sess.closed || (prev != StateIdle && prev != StateStable) {
		o.mu.Unlock()
		sess.log.Debug().Str("state", prev.String()).Msg("Ignoring offer")
		return
	}
	sess.state = StateAnswerPending
	o.mu.Unlock()

	if err := sess.conn.SetRemoteDescription(offer); err != nil {
		o.setState(sess, prev)
		o.negotiationFailed(sess, "set remote offer", err)
		return
	}
	o.flushCandidates(sess)

	answer, err := sess.conn.CreateAnswer(nil)
	if err != nil {
		o.negotiationFailed(sess, "create answer", err)
		o.abandonOffer(sess, prev)
		return
	}
	if !o.alive(sess) {
		return
	}
	if err := sess.conn.SetLocalDescription(answer); err != nil {
		o.negotiationFailed(sess, "set local answer", err)
		o.abandonOffer(sess, prev)
		return
	}
	if !o.setState(sess, StateStable) {
		return
	}
	o.signal(sess, structs.SignalData{SDP: described(sess.conn, answer)})
	sess.log.Info().Msg("Sent answer")
}

// abandonOffer rolls back a remote offer that could not be answered and
// returns the session to prev, so the peer's next offer is taken.
func (o *Orchestrator) abandonOffer(sess *peerSession, prev State) {
	if !o.alive(sess) {
		return
	}
	if sess.conn.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
		if err := sess.conn.SetLocalDescription(rollback); err != nil {
			sess.log.Debug().Err(err).Msg("Rollback remote offer")
		}
	}
	o.setState(sess, prev)
}

// acceptAnswer runs OfferSent -> Stable. The answer is applied only while our
// offer is still outstanding on the connection; anything else is stale.
func (o *Orchestrator) acceptAnswer(sess *peerSession, answer webrtc.SessionDescription) {
	o.mu.Lock()
	state := sess.state
	o.mu.Unlock()
	if state != StateOfferSent {
		sess.log.Debug().Str("state", state.String()).Msg("Ignoring stale answer")
		return
	}
	if ss := sess.conn.SignalingState(); ss != webrtc.SignalingStateHaveLocalOffer {
		sess.log.Debug().Str("signaling_state", ss.String()).Msg("Ignoring answer without outstanding offer")
		return
	}

	if err := sess.conn.SetRemoteDescription(answer); err != nil {
		o.negotiationFailed(sess, "set remote answer", err)
		return
	}
	o.flushCandidates(sess)
	if o.setState(sess, StateStable) {
		sess.log.Info().Msg("Negotiation complete")
	}
}

// addCandidate applies a remote candidate once a remote description exists,
// and queues it in arrival order until then.
func (o *Orchestrator) addCandidate(sess *peerSession, candidate webrtc.ICECandidateInit) {
	if sess.conn.RemoteDescription() != nil {
		o.applyCandidate(sess, candidate)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if sess.closed {
		return
	}
	sess.queued = append(sess.queued, candidate)
	sess.log.Debug().Int("queued", len(sess.queued)).Msg("Queued remote candidate")
}

// flushCandidates drains the queue exactly once after a remote description
// was set. Later candidates are applied directly.
func (o *Orchestrator) flushCandidates(sess *peerSession) {
	o.mu.Lock()
	queued := sess.queued
	sess.queued = nil
	o.mu.Unlock()

	for _, candidate := range queued {
		if !o.alive(sess) {
			return
		}
		o.applyCandidate(sess, candidate)
	}
	if len(queued) > 0 {
		sess.log.Debug().Int("applied", len(queued)).Msg("Flushed queued candidates")
	}
}

func (o *Orchestrator) applyCandidate(sess *peerSession, candidate webrtc.ICECandidateInit) {
	err := sess.conn.AddICECandidate(candidate)
	if err == nil {
		return
	}

	cerr := &CandidateError{PeerID: sess.id, Candidate: candidate, Err: err}
	o.mu.Lock()
	sess.candidateFailures++
	o.mu.Unlock()

	sess.log.Warn().Err(err).Str("candidate", candidate.Candidate).Msg("Remote candidate rejected")
	if o.hooks.OnCandidateFailure != nil {
		o.hooks.OnCandidateFailure(cerr)
	}
}

func (o *Orchestrator) negotiationFailed(sess *peerSession, step string, err error) {
	if !o.alive(sess) {
		// Closing the connection under a running step fails it; that is expected.
		return
	}
	nerr := &NegotiationError{PeerID: sess.id, Step: step, Err: err}
	sess.log.Error().Err(err).Str("step", step).Msg("Negotiation step failed")
	if o.hooks.OnNegotiationFailure != nil {
		o.hooks.OnNegotiationFailure(nerr)
	}
}

// described prefers the connection's view of the local description, which
// can carry gathered candidates, over the bare description we created.
func described(conn Conn, fallback webrtc.SessionDescription) *webrtc.SessionDescription {
	if local := conn.LocalDescription(); local != nil && local.Type == fallback.Type {
		return local
	}
	return &fallback
}
