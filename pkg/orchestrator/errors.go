package orchestrator

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var (
	ErrClosed         = errors.New("orchestrator closed")
	ErrNotJoined      = errors.New("not joined to a room")
	ErrCandidateApply = errors.New("candidate application failed")
	ErrNegotiation    = errors.New("negotiation step failed")
)

// CandidateError reports a remote ICE candidate the connection refused. It is
// never fatal to the peer session.
type CandidateError struct {
	PeerID    string
	Candidate webrtc.ICECandidateInit
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("apply candidate %q from %s: %v", e.Candidate.Candidate, e.PeerID, e.Err)
}

func (e *CandidateError) Unwrap() []error {
	return []error{ErrCandidateApply, e.Err}
}

// NegotiationError reports a failed offer, answer or description step.
type NegotiationError struct {
	PeerID string
	Step   string
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Step, e.PeerID, e.Err)
}

func (e *NegotiationError) Unwrap() []error {
	return []error{ErrNegotiation, e.Err}
}
