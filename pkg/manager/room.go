package manager

import (
	"slices"

	"github.com/MikeDev101/roomlink/pkg/structs"
)

// JoinRoom adds a client to a room, creating the room if it doesn't exist.
//
// While the room is still locked, announce is called with every other member in
// join order. Handlers use it to broadcast "peer-joined" and then build the
// "peers" snapshot, so a concurrent join or leave in the same room can never be
// interleaved with the snapshot. Joining a room twice keeps a single membership
// entry; announce still runs.
func JoinRoom(s *structs.Server, roomid string, client *structs.Client, announce func(others []*structs.Client)) {
	for {
		room := get_room(s, roomid)
		room.Mutex.Lock()
		if room.Destroyed {
			// Lost a race with the last member leaving; fetch the replacement.
			room.Mutex.Unlock()
			continue
		}
		if !slices.Contains(room.Members, client) {
			room.Members = append(room.Members, client)
		}
		client.EnterRoom(roomid)
		others := WithoutPeer(room.Members, client)
		if announce != nil {
			announce(others)
		}
		room.Mutex.Unlock()
		return
	}
}

// LeaveRoom removes a client from a room. While the room is locked, announce
// is called with the remaining members before the client is removed. The room
// is destroyed once it is empty. It does nothing if the room doesn't exist or
// the client isn't a member.
func LeaveRoom(s *structs.Server, roomid string, client *structs.Client, announce func(remaining []*structs.Client)) {
	room := find_room(s, roomid)
	if room == nil {
		client.ExitRoom(roomid)
		return
	}

	room.Mutex.Lock()
	i := slices.Index(room.Members, client)
	if room.Destroyed || i == -1 {
		room.Mutex.Unlock()
		client.ExitRoom(roomid)
		return
	}
	if announce != nil {
		announce(WithoutPeer(room.Members, client))
	}
	room.Members = slices.Delete(room.Members, i, i+1)
	empty := len(room.Members) == 0
	if empty {
		room.Destroyed = true
	}
	room.Mutex.Unlock()

	client.ExitRoom(roomid)
	if empty {
		unlink_room(s, room)
	}
}

// GetRoomPeers returns a copy of the members of a room in join order. It
// returns an empty slice if the room doesn't exist.
func GetRoomPeers(s *structs.Server, roomid string) []*structs.Client {
	room := find_room(s, roomid)
	if room == nil {
		return []*structs.Client{}
	}
	room.Mutex.Lock()
	defer room.Mutex.Unlock()
	if room.Destroyed {
		return []*structs.Client{}
	}
	return slices.Clone(room.Members)
}

// DoesRoomExist checks if a room currently has at least one member.
func DoesRoomExist(s *structs.Server, roomid string) bool {
	return len(GetRoomPeers(s, roomid)) > 0
}

// IsClientInRoom checks if a given client is a member of a given room.
func IsClientInRoom(s *structs.Server, roomid string, client *structs.Client) bool {
	return slices.Contains(GetRoomPeers(s, roomid), client)
}

// GetAllRooms lists the ids of every live room.
func GetAllRooms(s *structs.Server) []string {
	s.Rooms.Mutex.RLock()
	defer s.Rooms.Mutex.RUnlock()
	keys := make([]string, 0, len(s.Rooms.Rooms))
	for key := range s.Rooms.Rooms {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
