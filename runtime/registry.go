package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
)

// DefaultConnectionLifetime bounds how long a subscription may stay open
// before the timeout transition fires.
const DefaultConnectionLifetime = 30 * time.Minute

// Registry maps each room to its set of live connections. Subscribe, removal
// and Snapshot are safe to call concurrently from any request-serving
// goroutine; iteration never sees a live map, only a copied slice.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]map[uuid.UUID]*Connection
	lifetime time.Duration
	buffer   int
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger, lifetime time.Duration, buffer int) *Registry {
	if lifetime <= 0 {
		lifetime = DefaultConnectionLifetime
	}
	return &Registry{
		rooms:    make(map[domain.RoomID]map[uuid.UUID]*Connection),
		lifetime: lifetime,
		buffer:   buffer,
		log:      log,
	}
}

// Subscribe creates a connection for the room and registers it. The room
// entry is created on the fly. The connection's terminal transitions all
// land on the registry's removal path.
func (r *Registry) Subscribe(room domain.RoomID) *Connection {
	c := newConnection(room, r.lifetime, r.buffer, r.remove)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[uuid.UUID]*Connection)
	}
	r.rooms[room][c.ID] = c

	r.log.Debug("connection subscribed",
		"connection_id", c.ID, "room_id", room)
	return c
}

// remove detaches a connection from its room. Removing an already-removed
// connection is a no-op; an emptied room leaves no entry behind.
func (r *Registry) remove(c *Connection, reason CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[c.Room]
	if !ok {
		return
	}
	if _, ok := conns[c.ID]; !ok {
		return
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.rooms, c.Room)
	}

	r.log.Debug("connection removed",
		"connection_id", c.ID, "room_id", c.Room, "reason", reason)
}

// Snapshot returns a copy of the room's current connections. An absent room
// and an empty room look identical: nil.
func (r *Registry) Snapshot(room domain.RoomID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.rooms[room]
	if !ok {
		return nil
	}
	snapshot := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// Expired lists every connection past its deadline, for the reaper to
// terminate outside the registry lock.
func (r *Registry) Expired(now time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*Connection
	for _, conns := range r.rooms {
		for _, c := range conns {
			if c.Expired(now) {
				expired = append(expired, c)
			}
		}
	}
	return expired
}

// Stats reports room and connection counts for the health endpoint.
func (r *Registry) Stats() (rooms, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, conns := range r.rooms {
		connections += len(conns)
	}
	return len(r.rooms), connections
}
