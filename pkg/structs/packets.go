package structs

import (
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

// Event names carried in the "event" field of every frame.
const (
	EventJoin           = "join"
	EventPeers          = "peers"
	EventPeerJoined     = "peer-joined"
	EventPeerLeft       = "peer-left"
	EventSignal         = "signal"
	EventPosUpdate      = "pos-update"
	EventPeerPos        = "peer-pos"
	EventChatMessage    = "chat-message"
	EventPrivateMessage = "private-message"
	EventKeepalive      = "keepalive"
	EventMeta           = "meta"
	EventViolation      = "violation"
)

// Declare the frame format used in both directions.
type Packet struct {
	Event   string          `json:"event" validate:"required" label:"event"`
	Payload json.RawMessage `json:"payload,omitempty" label:"payload"`
}

// Client -> Server, registers membership.
type JoinParams struct {
	RoomID      string `json:"roomId" validate:"required" label:"roomId"`
	DisplayName string `json:"displayName" label:"displayName"`
}

// PeerInfo is the peer record handed out in "peers" and "peer-joined".
type PeerInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// PeerGone is the "peer-left" payload.
type PeerGone struct {
	ID string `json:"id"`
}

// SignalParams is the client -> server form of "signal". Data is relayed as-is.
type SignalParams struct {
	RoomID   string          `json:"roomId,omitempty" label:"roomId"`
	TargetID string          `json:"targetId" validate:"required" label:"targetId"`
	Data     json.RawMessage `json:"data" label:"data"`
}

// RelayedSignal is the server -> client form of "signal".
type RelayedSignal struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// SignalData is what clients put inside a signal. The relay never decodes it.
type SignalData struct {
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Client -> Server position broadcast.
type PosUpdate struct {
	RoomID string  `json:"roomId" validate:"required" label:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Server -> Client position fan-out.
type PeerPos struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Client -> Server room chat.
type ChatParams struct {
	RoomID  string `json:"roomId" validate:"required" label:"roomId"`
	Message string `json:"message" label:"message"`
	From    string `json:"from" label:"from"`
}

// ChatMessage is relayed to the rest of the room with a server timestamp (unix ms).
type ChatMessage struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Client -> Server directed chat.
type PrivateParams struct {
	RoomID   string `json:"roomId,omitempty" label:"roomId"`
	TargetID string `json:"targetId" validate:"required" label:"targetId"`
	Message  string `json:"message" label:"message"`
	From     string `json:"from" label:"from"`
}

// PrivateMessage is delivered to the target only.
type PrivateMessage struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	FromID    string `json:"fromId"`
}

// Violation explains why a frame was rejected.
type Violation struct {
	Reason string `json:"reason"`
}

// MetaInfo is the reply to "meta".
type MetaInfo struct {
	OperatingSystem string `json:"os"`
	Architecture    string `json:"architecture"`
	ServerVersion   string `json:"version"`
	GoVersion       string `json:"go_version"`
}
