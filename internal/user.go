package internal

import "sync"

// Sink delivers a single ServerMessage to one connected client.
// Implementations must never block; messages for a session that is
// gone or backlogged are dropped.
type Sink interface {
	Deliver(msg ServerMessage)
}

// User is one connected identity. A user outlives any room it is in;
// the session and the rooms share the same *User. All fields behind
// the mutex see far more reads than writes, and writers (rename,
// room change, sink attach/detach) hold the lock only briefly.
//
// Lock order is always registry -> user. Code that needs the current
// game id to decide a registry operation must copy it out (Game) and
// release the user lock before touching the registry.
type User struct {
	Id uint32

	mu     sync.RWMutex
	name   string
	gameID uint16
	inGame bool
	sink   Sink
}

func NewUser(id uint32, name string) *User {
	return &User{Id: id, name: name}
}

func (u *User) Name() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.name
}

func (u *User) SetName(name string) {
	u.mu.Lock()
	u.name = name
	u.mu.Unlock()
}

// Game returns the id of the room the user is in, if any.
func (u *User) Game() (uint16, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.gameID, u.inGame
}

func (u *User) SetGame(id uint16) {
	u.mu.Lock()
	u.gameID = id
	u.inGame = true
	u.mu.Unlock()
}

func (u *User) ClearGame() {
	u.mu.Lock()
	u.gameID = 0
	u.inGame = false
	u.mu.Unlock()
}

// AttachSink publishes the session's send handle. Done once the
// socket is ready to accept outbound messages.
func (u *User) AttachSink(s Sink) {
	u.mu.Lock()
	u.sink = s
	u.mu.Unlock()
}

// DetachSink removes the send handle on session shutdown. Broadcasts
// skip users without a sink.
func (u *User) DetachSink() {
	u.mu.Lock()
	u.sink = nil
	u.mu.Unlock()
}

// Send delivers msg to the user's session, fire-and-forget. A user
// without a sink silently receives nothing.
func (u *User) Send(msg ServerMessage) {
	u.mu.RLock()
	sink := u.sink
	u.mu.RUnlock()
	if sink != nil {
		sink.Deliver(msg)
	}
}
