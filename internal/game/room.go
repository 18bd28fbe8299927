package game

import (
	"log"
	"time"

	"songguessr/internal"
)

// =============================================================================
// ROOM STATE MACHINE
// =============================================================================

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseSelecting
	PhaseGuessing
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseSelecting:
		return "selecting_songs"
	case PhaseGuessing:
		return "guessing_songs"
	}
	return "unknown"
}

// guessEnqueueWait bounds how long a guess may wait on a full sink
// while the registry lock is held. The engine flushes stale guesses
// every round, so in practice this never fires; it exists so a wedged
// engine cannot deadlock the whole registry.
const guessEnqueueWait = 250 * time.Millisecond

// Room is one game. Players are kept in join order and the first one
// is the host. Every method below runs with the registry lock held
// exclusively (via Registry.WithRoom), so the struct needs no lock of
// its own.
type Room struct {
	ID      uint16
	Players []*internal.User

	phase      Phase
	readyCount uint8
	readyIDs   map[uint32]struct{}

	// Per-contributor song buckets, only populated while selecting.
	// bucketOrder remembers first-contribution order so the flattened
	// bag is deterministic.
	buckets     map[uint32][]internal.Song
	bucketOrder []uint32

	// The only way into the round engine, only set while guessing.
	guesses chan<- PlayerGuess

	reg *Registry
}

func newRoom(id uint16, reg *Registry) *Room {
	return &Room{
		ID:       id,
		phase:    PhaseLobby,
		readyIDs: make(map[uint32]struct{}),
		reg:      reg,
	}
}

func (r *Room) Phase() Phase { return r.phase }

func (r *Room) setPhase(p Phase) {
	log.Printf("[Game %d] now in state %s", r.ID, p)
	r.phase = p
}

// broadcast fans msg out to every player in join order. Users whose
// session is gone have no sink and are skipped silently.
func (r *Room) broadcast(msg internal.ServerMessage) {
	for _, p := range r.Players {
		p.Send(msg)
	}
}

// Join adds user to the room. Outside the lobby nothing is mutated
// and the joining user alone hears the error. The existing roster is
// replayed to the newcomer as one UserJoin per player.
func (r *Room) Join(user *internal.User) {
	if r.phase != PhaseLobby {
		user.Send(internal.ErrorMessage{Reason: "cannot join game: game is not in lobby state"})
		return
	}

	user.SetGame(r.ID)
	r.broadcast(internal.UserJoin{Name: user.Name()})
	for _, p := range r.Players {
		user.Send(internal.UserJoin{Name: p.Name()})
	}
	r.Players = append(r.Players, user)
}

// Leave removes user and reports whether the room became empty, in
// which case the caller (Registry.WithRoom) drops the room. A leaver
// who was counted as ready gives the count back so it can never
// exceed the remaining player count. Leaving during a game does not
// abort the round; the engine works from its own snapshot.
func (r *Room) Leave(user *internal.User) bool {
	r.broadcast(internal.UserLeave{Name: user.Name()})

	for i, p := range r.Players {
		if p.Id == user.Id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if _, wasReady := r.readyIDs[user.Id]; wasReady {
		delete(r.readyIDs, user.Id)
		if r.readyCount > 0 {
			r.readyCount--
		}
	}
	user.ClearGame()

	return len(r.Players) == 0
}

// Ready marks user as ready and, once everyone is, announces the
// start instant and schedules the transition. The scheduled callback
// is not cancellable; it re-checks the lobby invariant when it fires,
// so any unready or roster change in between turns it into a no-op.
func (r *Room) Ready(user *internal.User) internal.ServerMessage {
	if r.phase != PhaseLobby {
		return internal.ErrorMessage{Reason: "cannot ready up: game is not in lobby state"}
	}
	if _, already := r.readyIDs[user.Id]; already {
		return internal.ServerAck{}
	}

	r.broadcast(internal.UserReady{Name: user.Name()})
	r.readyIDs[user.Id] = struct{}{}
	r.readyCount++

	if int(r.readyCount) < len(r.Players) {
		return internal.ServerAck{}
	}

	delay := r.reg.timings.StartDelay
	startAt := r.reg.clock.NowUnixMs() + uint64(delay/time.Millisecond)
	r.broadcast(internal.GameStartAt{UnixMs: startAt})

	roomID := r.ID
	reg := r.reg
	reg.clock.After(delay, func() {
		reg.WithRoom(roomID, func(room *Room) {
			if room.phase != PhaseLobby {
				return
			}
			if len(room.Players) == 0 || int(room.readyCount) < len(room.Players) {
				return
			}
			room.startGame()
		})
	})
	return internal.ServerAck{}
}

// Unready takes back one ready. A user who never readied up acks
// without effect so the count stays in step with the id set.
func (r *Room) Unready(user *internal.User) internal.ServerMessage {
	if r.phase != PhaseLobby {
		return internal.ErrorMessage{Reason: "cannot unready: game is not in lobby state"}
	}
	if r.readyCount == 0 {
		return internal.ErrorMessage{Reason: "cannot unready: no one is ready"}
	}
	if _, wasReady := r.readyIDs[user.Id]; !wasReady {
		return internal.ServerAck{}
	}
	delete(r.readyIDs, user.Id)
	r.readyCount--
	r.broadcast(internal.UserUnready{Name: user.Name()})
	return internal.ServerAck{}
}

// startGame transitions Lobby -> SelectingSongs.
func (r *Room) startGame() {
	r.setPhase(PhaseSelecting)
	r.readyCount = 0
	r.readyIDs = make(map[uint32]struct{})
	r.buckets = make(map[uint32][]internal.Song)
	r.bucketOrder = nil
	r.broadcast(internal.GameStartSelect{})
}

// AppendSongs files downloaded songs into the contributor's bucket
// and confirms each one. Reports false when the phase moved on while
// the download ran, in which case the songs are dropped.
func (r *Room) AppendSongs(user *internal.User, songs []internal.Song) bool {
	if r.phase != PhaseSelecting {
		return false
	}
	if _, seen := r.buckets[user.Id]; !seen {
		r.bucketOrder = append(r.bucketOrder, user.Id)
	}
	r.buckets[user.Id] = append(r.buckets[user.Id], songs...)
	for _, s := range songs {
		user.Send(internal.AddedSong{Song: s})
	}
	return true
}

// RemoveSong drops the song at idx from the caller's own bucket.
func (r *Room) RemoveSong(user *internal.User, idx uint32) internal.ServerMessage {
	if r.phase != PhaseSelecting {
		return internal.ErrorMessage{Reason: "cannot remove song: game is not in song selection state"}
	}
	bucket := r.buckets[user.Id]
	if idx >= uint32(len(bucket)) {
		return internal.ErrorMessage{Reason: "cannot remove song: index out of range"}
	}
	r.buckets[user.Id] = append(bucket[:idx], bucket[idx+1:]...)
	return internal.RemovedSong{Index: idx}
}

// StartGuessing flattens all buckets into the song bag and hands it
// to a fresh round engine. Host only.
func (r *Room) StartGuessing(user *internal.User) {
	if r.phase != PhaseSelecting {
		user.Send(internal.ErrorMessage{Reason: "cannot start guessing: game is not in song selection state"})
		return
	}
	if len(r.Players) == 0 || r.Players[0].Id != user.Id {
		user.Send(internal.ErrorMessage{Reason: "cannot start guessing: you are not the leader"})
		return
	}

	var bag []internal.Song
	for _, id := range r.bucketOrder {
		bag = append(bag, r.buckets[id]...)
	}
	players := append([]*internal.User(nil), r.Players...)

	r.buckets = nil
	r.bucketOrder = nil
	r.setPhase(PhaseGuessing)
	// Announce before the engine goroutine exists, so nobody can hear
	// the first game_play_audio ahead of game_start_guessing.
	r.broadcast(internal.GameStartGuessing{})
	r.guesses = startEngine(r.reg, r.reg.clock, r.reg.timings, r.ID, players, bag)
}

// Guess forwards (user, choice) into the engine's sink. The sink is
// bounded at one slot per player; if it is somehow full the guess is
// dropped after a short wait rather than wedging the registry lock.
func (r *Room) Guess(user *internal.User, choice uint8) {
	if r.phase != PhaseGuessing {
		user.Send(internal.ErrorMessage{Reason: "cannot guess song: game is not in guessing state"})
		return
	}
	select {
	case r.guesses <- PlayerGuess{User: user, Choice: choice}:
	case <-time.After(guessEnqueueWait):
		log.Printf("[Game %d] guess sink full, dropping guess from %d", r.ID, user.Id)
	}
}

// endGame is the engine's hand-back: GuessingSongs -> Lobby with a
// fresh ready count.
func (r *Room) endGame() {
	if r.phase != PhaseGuessing {
		return
	}
	r.setPhase(PhaseLobby)
	r.readyCount = 0
	r.readyIDs = make(map[uint32]struct{})
	r.guesses = nil
	r.broadcast(internal.GameEnded{})
}
