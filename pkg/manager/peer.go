package manager

import (
	"github.com/MikeDev101/roomlink/pkg/structs"
)

// WithoutPeer returns a slice of all elements in the given slice of clients that are
// not equal to the given client. Nil elements are also ignored. The returned
// slice is a new slice and does not modify the original slice in any way.
func WithoutPeer(clients []*structs.Client, client *structs.Client) []*structs.Client {
	b := make([]*structs.Client, 0, len(clients))
	for _, x := range clients {
		if x != nil && x != client {
			b = append(b, x)
		}
	}
	return b
}

// GetByULID returns the live client with the given ULID, or nil.
func GetByULID(s *structs.Server, id string) *structs.Client {
	if id == "" {
		return nil
	}
	return GetSession(s, id)
}

// DoesPeerExist checks if a live connection with the given ID exists on the server.
func DoesPeerExist(s *structs.Server, id string) bool {
	return GetByULID(s, id) != nil
}

// PeerList converts clients into the peer records sent on the wire.
func PeerList(clients []*structs.Client) []*structs.PeerInfo {
	peers := make([]*structs.PeerInfo, 0, len(clients))
	for _, c := range clients {
		peers = append(peers, c.Info())
	}
	return peers
}
