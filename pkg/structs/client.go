package structs

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

type Client struct {
	Conn        *websocket.Conn
	Session     uint64 // websocket counter, for logs only
	ID          string // ULID, never reused
	DisplayName string
	Rooms       map[string]struct{}
	Mux         *sync.RWMutex
	Outbox      chan []byte   // drained by the session write pump
	Done        chan struct{} // closed once the session is closing
	WriterDone  chan struct{} // closed by the write pump on exit, nil if no pump runs
	closeOnce   sync.Once
}

// NewClient builds a client with an outbox of the given size. Conn may be nil
// when the client is driven without a websocket (tests).
func NewClient(conn *websocket.Conn, id string, outbox int) *Client {
	if outbox <= 0 {
		outbox = 1
	}
	return &Client{
		Conn:   conn,
		ID:     id,
		Rooms:  make(map[string]struct{}),
		Mux:    &sync.RWMutex{},
		Outbox: make(chan []byte, outbox),
		Done:   make(chan struct{}),
	}
}

func (c *Client) SetDisplayName(name string) {
	c.Mux.Lock()
	defer c.Mux.Unlock()
	c.DisplayName = name
}

func (c *Client) Name() string {
	c.Mux.RLock()
	defer c.Mux.RUnlock()
	return c.DisplayName
}

func (c *Client) Info() *PeerInfo {
	return &PeerInfo{ID: c.ID, DisplayName: c.Name()}
}

func (c *Client) EnterRoom(room string) {
	c.Mux.Lock()
	defer c.Mux.Unlock()
	c.Rooms[room] = struct{}{}
}

func (c *Client) ExitRoom(room string) {
	c.Mux.Lock()
	defer c.Mux.Unlock()
	delete(c.Rooms, room)
}

// JoinedRooms returns a copy of the rooms the client is a member of.
func (c *Client) JoinedRooms() []string {
	c.Mux.RLock()
	defer c.Mux.RUnlock()
	rooms := make([]string, 0, len(c.Rooms))
	for room := range c.Rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// MarkClosed closes Done exactly once.
func (c *Client) MarkClosed() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.Done:
		return true
	default:
		return false
	}
}
