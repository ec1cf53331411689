package session

import "sync"

// Registry is the process-wide index of resident rooms. It owns every Room
// instance and knows nothing about persistence; seeding a cold room's
// document is the gateway's job. Constructed once in main and injected so
// tests get fresh instances.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the resident room for id, creating an empty one
// (no peers, empty document) if absent. created reports whether this call
// inserted the entry, so the caller knows a seed from storage is needed.
func (reg *Registry) GetOrCreate(id string) (room *Room, created bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[id]; ok {
		return r, false
	}
	r := NewRoom(id)
	reg.rooms[id] = r
	return r, true
}

func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Remove evicts the entry unconditionally. The caller must guarantee the
// room's peer set is empty first.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

func (reg *Registry) ActiveRooms() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) ActiveConnections() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	total := 0
	for _, r := range reg.rooms {
		total += r.PeerCount()
	}
	return total
}
