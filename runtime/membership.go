package runtime

import (
	"sort"
	"sync"

	"chat-hub/domain"
)

type identitySet map[domain.IdentityID]struct{}

type roomSet map[domain.RoomID]struct{}

// Membership tracks which identities are currently in which rooms. Room
// entries are created lazily on first join and dropped when their set
// empties. The reverse index keeps disconnect cleanup bounded: we walk the
// identity's known rooms instead of scanning every room.
type Membership struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomID]identitySet
	byIdentity map[domain.IdentityID]roomSet
}

func NewMembership() *Membership {
	return &Membership{
		rooms:      make(map[domain.RoomID]identitySet),
		byIdentity: make(map[domain.IdentityID]roomSet),
	}
}

// Join adds an identity to a room. Idempotent: re-joining reports added=false
// and leaves the set unchanged.
func (m *Membership) Join(roomID domain.RoomID, id domain.IdentityID) (added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(identitySet)
		m.rooms[roomID] = members
	}
	if _, exists := members[id]; exists {
		return false
	}
	members[id] = struct{}{}

	rooms, ok := m.byIdentity[id]
	if !ok {
		rooms = make(roomSet)
		m.byIdentity[id] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave removes an identity from a room if present. Absent membership is a
// successful no-op. Empty sets are deleted so the maps never leak rooms.
func (m *Membership) Leave(roomID domain.RoomID, id domain.IdentityID) (removed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(roomID, id)
}

func (m *Membership) leaveLocked(roomID domain.RoomID, id domain.IdentityID) bool {
	members, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(m.rooms, roomID)
	}

	if rooms, ok := m.byIdentity[id]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.byIdentity, id)
		}
	}
	return true
}

// RemoveEverywhere clears an identity from every room it is a member of and
// returns the affected rooms. Each removal is its own atomic single-room
// operation; a concurrent join racing with cleanup may win or lose but the
// sets stay consistent either way.
func (m *Membership) RemoveEverywhere(id domain.IdentityID) []domain.RoomID {
	rooms := m.Rooms(id)
	var affected []domain.RoomID
	for _, roomID := range rooms {
		if m.Leave(roomID, id) {
			affected = append(affected, roomID)
		}
	}
	return affected
}

// Participants returns the room's current members, sorted for stable
// participant-list payloads. Unknown rooms yield an empty slice, never an
// error.
func (m *Membership) Participants(roomID domain.RoomID) []domain.IdentityID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]domain.IdentityID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Rooms returns the rooms an identity is currently in (reverse index read).
func (m *Membership) Rooms(id domain.IdentityID) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms, ok := m.byIdentity[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsMember reports whether an identity currently participates in a room.
func (m *Membership) IsMember(roomID domain.RoomID, id domain.IdentityID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	_, exists := members[id]
	return exists
}

// Count returns the number of participants in a room.
func (m *Membership) Count(roomID domain.RoomID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomID])
}
