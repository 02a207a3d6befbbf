package manager

import (
	"github.com/MikeDev101/roomlink/pkg/structs"
)

// get_room is an internal helper function that retrieves a room from a server.
// If the room doesn't exist, it is created. The caller must lock the room and
// re-check Destroyed, since an emptied room may be unlinked between the two locks.
func get_room(s *structs.Server, roomid string) *structs.Room {
	s.Rooms.Mutex.Lock()
	defer s.Rooms.Mutex.Unlock()
	room, exists := s.Rooms.Rooms[roomid]
	if !exists {
		room = &structs.Room{ID: roomid, Members: make([]*structs.Client, 0)}
		s.Rooms.Rooms[roomid] = room
	}
	return room
}

// find_room returns the room if it exists, without creating it.
func find_room(s *structs.Server, roomid string) *structs.Room {
	s.Rooms.Mutex.RLock()
	defer s.Rooms.Mutex.RUnlock()
	return s.Rooms.Rooms[roomid]
}

// unlink_room removes the room from the store, but only if the store still
// points at this exact room.
func unlink_room(s *structs.Server, room *structs.Room) {
	s.Rooms.Mutex.Lock()
	defer s.Rooms.Mutex.Unlock()
	if s.Rooms.Rooms[room.ID] == room {
		delete(s.Rooms.Rooms, room.ID)
	}
}
