package game

import (
	"log"
	"math/rand"
	"time"

	"songguessr/internal"
)

// =============================================================================
// ROUND ENGINE
// =============================================================================

// PlayerGuess is one delivery through the guess sink.
type PlayerGuess struct {
	User   *internal.User
	Choice uint8
}

// GameEnder is the engine's only way back into the room set; keeping
// it an interface means the engine never touches the registry lock
// directly.
type GameEnder interface {
	EndGame(roomID uint16)
}

// optionCount is the number of (title, artist) choices per round.
const optionCount = 4

// engine runs one guessing phase on its own goroutine. It owns the
// song bag exclusively and works from a snapshot of the player list;
// players who leave mid-game simply never answer, and the round
// deadline bounds the wait for them.
type engine struct {
	roomID  uint16
	players []*internal.User
	bag     []internal.Song
	guesses chan PlayerGuess

	ender   GameEnder
	clock   Clock
	timings Timings
	rng     *rand.Rand
	board   *leaderboard
}

// startEngine spawns the engine and returns its guess sink. The sink
// holds one slot per player, enough for everyone to answer a round
// without blocking.
func startEngine(ender GameEnder, clock Clock, timings Timings, roomID uint16, players []*internal.User, bag []internal.Song) chan<- PlayerGuess {
	cap := len(players)
	if cap < 1 {
		cap = 1
	}
	e := &engine{
		roomID:  roomID,
		players: players,
		bag:     bag,
		guesses: make(chan PlayerGuess, cap),
		ender:   ender,
		clock:   clock,
		timings: timings,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		board:   newLeaderboard(),
	}
	go e.run()
	return e.guesses
}

func (e *engine) broadcast(msg internal.ServerMessage) {
	for _, p := range e.players {
		p.Send(msg)
	}
}

func (e *engine) run() {
	log.Printf("[Engine %d] starting with %d songs, %d players", e.roomID, len(e.bag), len(e.players))

	// One uniform permutation for the whole game.
	order := e.rng.Perm(len(e.bag))
	for k := range order {
		e.playRound(k, order)
		if k < len(order)-1 {
			e.clock.Sleep(e.timings.LeaderboardPause)
		}
	}

	e.clock.Sleep(e.timings.EndPause)
	log.Printf("[Engine %d] all rounds done", e.roomID)
	e.ender.EndGame(e.roomID)
}

func (e *engine) playRound(k int, order []int) {
	// Guesses left over from the previous round are stale.
	e.flush()

	current := e.bag[order[k]]
	e.broadcast(internal.GamePlayAudio{SongID: current.Id})

	options, correctIdx := e.buildOptions(k, order)
	e.broadcast(internal.GameGuessOptions{Options: options})

	start := e.clock.Now()
	deadline := e.clock.Deadline(e.timings.GuessDeadline)
	guessed := make(map[uint32]struct{})

collect:
	for len(guessed) < len(e.players) {
		select {
		case g := <-e.guesses:
			if _, dup := guessed[g.User.Id]; dup {
				continue
			}
			guessed[g.User.Id] = struct{}{}
			if int(g.Choice) == correctIdx {
				t := tenths(e.clock.Now().Sub(start))
				e.board.award(g.User, scoreDelta(t))
			}
		case <-deadline:
			log.Printf("[Engine %d] round %d deadline, %d/%d answered", e.roomID, k, len(guessed), len(e.players))
			break collect
		}
	}

	e.broadcast(internal.Correct{Index: uint8(correctIdx)})
	e.clock.Sleep(e.timings.RevealPause)
	e.broadcast(internal.LeaderBoard{Entries: e.board.entries()})
}

func (e *engine) flush() {
	for {
		select {
		case <-e.guesses:
		default:
			return
		}
	}
}

// buildOptions assembles the four answer choices for round k:
// distinct (title, artist) pairs drawn at random from the songs not
// yet played, the current song's pair forced in if the draw missed
// it, then padding from already-played songs (never the current id).
// When the whole bag cannot fill four slots the current pair repeats,
// so a one-song bag shows the right answer in every slot. Returns the
// shuffled options and the slot holding the current song.
func (e *engine) buildOptions(k int, order []int) ([]internal.GuessOption, int) {
	current := e.bag[order[k]]
	currentPair := internal.GuessOption{Title: current.Title, Artist: current.Artist}

	options := drawDistinct(e.rng, e.songsAt(order[k:]), optionCount, nil)

	hasCurrent := false
	for _, o := range options {
		if o == currentPair {
			hasCurrent = true
			break
		}
	}
	if !hasCurrent {
		options[e.rng.Intn(len(options))] = currentPair
	}

	if len(options) < optionCount {
		exclude := map[internal.GuessOption]struct{}{}
		for _, o := range options {
			exclude[o] = struct{}{}
		}
		var played []internal.Song
		for _, s := range e.songsAt(order[:k]) {
			if s.Id != current.Id {
				played = append(played, s)
			}
		}
		options = append(options, drawDistinct(e.rng, played, optionCount-len(options), exclude)...)
	}
	for len(options) < optionCount {
		options = append(options, currentPair)
	}

	// Shuffle and keep hold of where the current song ended up. With
	// repeated pads the first matching slot is the answer.
	e.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	correctIdx := 0
	for i, o := range options {
		if o == currentPair {
			correctIdx = i
			break
		}
	}
	return options, correctIdx
}

func (e *engine) songsAt(indices []int) []internal.Song {
	songs := make([]internal.Song, 0, len(indices))
	for _, i := range indices {
		songs = append(songs, e.bag[i])
	}
	return songs
}

// drawDistinct picks up to n distinct (title, artist) pairs from
// songs in random order, skipping anything in exclude.
func drawDistinct(rng *rand.Rand, songs []internal.Song, n int, exclude map[internal.GuessOption]struct{}) []internal.GuessOption {
	perm := rng.Perm(len(songs))
	seen := make(map[internal.GuessOption]struct{}, n)
	var picked []internal.GuessOption
	for _, i := range perm {
		if len(picked) == n {
			break
		}
		pair := internal.GuessOption{Title: songs[i].Title, Artist: songs[i].Artist}
		if _, dup := seen[pair]; dup {
			continue
		}
		if exclude != nil {
			if _, skip := exclude[pair]; skip {
				continue
			}
		}
		seen[pair] = struct{}{}
		picked = append(picked, pair)
	}
	return picked
}
