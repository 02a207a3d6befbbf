package manager

import (
	"fmt"

	"github.com/MikeDev101/roomlink/pkg/structs"
)

// GetSession retrieves the client registered under the given ID.
// It returns nil if no such connection is live. The function is thread-safe.
func GetSession(s *structs.Server, id string) *structs.Client {
	s.Sessions.Mutex.RLock()
	defer s.Sessions.Mutex.RUnlock()
	return s.Sessions.Sessions[id]
}

// CreateSession registers a live connection under its identity.
// It returns an error if the identity is already taken, since identities are never reused.
func CreateSession(s *structs.Server, client *structs.Client) error {
	s.Sessions.Mutex.Lock()
	defer s.Sessions.Mutex.Unlock()
	if _, exists := s.Sessions.Sessions[client.ID]; exists {
		return fmt.Errorf("session already exists for %s", client.ID)
	}
	s.Sessions.Sessions[client.ID] = client
	return nil
}

// DeleteSession removes the connection from the session table.
// It returns an error if the session does not exist.
func DeleteSession(s *structs.Server, client *structs.Client) error {
	s.Sessions.Mutex.Lock()
	defer s.Sessions.Mutex.Unlock()
	if s.Sessions.Sessions[client.ID] != client {
		return fmt.Errorf("session does not exist")
	}
	delete(s.Sessions.Sessions, client.ID)
	return nil
}

// CountSessions returns the number of live connections.
func CountSessions(s *structs.Server) int {
	s.Sessions.Mutex.RLock()
	defer s.Sessions.Mutex.RUnlock()
	return len(s.Sessions.Sessions)
}
