package structs

import (
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

type Server struct {
	AuthorizedOriginsStorage []*regexp.Regexp
	Rooms                    *RoomStore
	Sessions                 *SessionStore
	PacketValidator          *validator.Validate
	OutboxSize               int
	WebsocketConnCounter     atomic.Uint64
}

// Room is a named set of connections. Members is only touched with Mutex held.
type Room struct {
	Mutex     sync.Mutex
	ID        string
	Members   []*Client // join order
	Destroyed bool      // set once the room was emptied and unlinked from the store
}

type RoomStore struct {
	Mutex sync.RWMutex
	Rooms map[string]*Room
}

type SessionStore struct {
	Mutex    sync.RWMutex
	Sessions map[string]*Client
}
