package orchestrator

// Role is fixed when a peer session is created.
type Role int

const (
	// RoleInitiator is taken by the newcomer toward every member listed in
	// its "peers" snapshot.
	RoleInitiator Role = iota
	// RoleResponder is taken when a signal arrives from an unknown peer.
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// State is the negotiation state of one peer session.
//
//	Idle -> OfferSent -> Stable        (initiator)
//	Idle -> AnswerPending -> Stable    (responder)
//	any  -> Closed                     (peer left, reset)
type State int

const (
	StateIdle State = iota
	StateOfferSent
	StateAnswerPending
	StateStable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateAnswerPending:
		return "answer-pending"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
