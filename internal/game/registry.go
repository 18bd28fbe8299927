package game

import (
	"errors"
	"log"
	"math/rand"
	"sync"

	"songguessr/internal"
)

// =============================================================================
// ROOM REGISTRY
// =============================================================================

// maxIDAttempts bounds the random-id retry loop in CreateAndJoin.
// With 65536 possible ids and a handful of live rooms, hitting the
// bound means something is deeply wrong.
const maxIDAttempts = 32

// ErrNoFreeRoomID is returned when CreateAndJoin exhausts its retries.
var ErrNoFreeRoomID = errors.New("no free room id after repeated attempts")

// Registry is the process-wide room set. It is the only place rooms
// are created or destroyed, and its single exclusive lock serializes
// every room mutation; per-action critical sections are short enough
// that the coarse grain does not hurt. Broadcasts happen while the
// lock is held — sinks never block, so this cannot deadlock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uint16]*Room

	clock   Clock
	timings Timings
	randID  func() uint16
}

func NewRegistry(clock Clock, timings Timings) *Registry {
	return &Registry{
		rooms:   make(map[uint16]*Room),
		clock:   clock,
		timings: timings,
		randID:  func() uint16 { return uint16(rand.Uint32()) },
	}
}

// CreateAndJoin makes a new room with a random unused id and joins
// the creator in the same critical section, so an empty room is never
// observable in the registry.
func (g *Registry) CreateAndJoin(user *internal.User) (uint16, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := g.randID()
		if _, taken := g.rooms[id]; taken {
			continue
		}
		room := newRoom(id, g)
		g.rooms[id] = room
		room.Join(user)
		log.Printf("[Registry] created room %d", id)
		return id, nil
	}
	log.Printf("[Registry] could not find a free room id in %d attempts", maxIDAttempts)
	return 0, ErrNoFreeRoomID
}

// WithRoom runs fn with the registry lock held exclusively. fn may
// call any Room method but must not block on I/O. Rooms left empty by
// fn are removed before the lock is released. Returns false if the
// room does not exist.
func (g *Registry) WithRoom(id uint16, fn func(*Room)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		return false
	}
	fn(room)
	if len(room.Players) == 0 {
		delete(g.rooms, id)
		log.Printf("[Registry] removed empty room %d", id)
	}
	return true
}

// ReadRoom runs fn under the shared lock, for lookups that do not
// mutate. fn must not broadcast or mutate anything.
func (g *Registry) ReadRoom(id uint16, fn func(*Room)) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room, ok := g.rooms[id]
	if !ok {
		return false
	}
	fn(room)
	return true
}

// EndGame is the round engine's completion callback: the room goes
// back to the lobby and everyone hears GameEnded. If the last player
// left mid-game the room is already gone and this is a no-op.
func (g *Registry) EndGame(roomID uint16) {
	g.WithRoom(roomID, func(room *Room) {
		room.endGame()
	})
}
