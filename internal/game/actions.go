package game

import (
	"log"
	"strconv"
	"strings"

	"songguessr/internal"
)

// =============================================================================
// ACTIONS — the single core entrypoint
// =============================================================================

type Verb int

const (
	VerbInvalid Verb = iota
	VerbSetUsername
	VerbNew
	VerbJoin
	VerbReadyUp
	VerbUnready
	VerbSuggest
	VerbAdd
	VerbRemove
	VerbStartGuessing
	VerbGuess
	VerbLeave
)

// Action is one parsed client command. Only the field matching the
// verb is meaningful.
type Action struct {
	Verb   Verb
	Text   string // set_username, suggest, add payloads
	GameID uint16 // join
	Index  uint32 // remove
	Choice uint8  // guess
}

// ParseAction splits a line on the first space and maps the verb to
// the closed action set. Numeric payloads that fail to parse become
// zero, matching the original protocol; unknown verbs (including the
// reserved "start") come back as VerbInvalid.
func ParseAction(line string) Action {
	verb, payload, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case "set_username":
		return Action{Verb: VerbSetUsername, Text: payload}
	case "new":
		return Action{Verb: VerbNew}
	case "join":
		id, _ := strconv.ParseUint(payload, 10, 16)
		return Action{Verb: VerbJoin, GameID: uint16(id)}
	case "ready_up":
		return Action{Verb: VerbReadyUp}
	case "unready":
		return Action{Verb: VerbUnready}
	case "suggest":
		return Action{Verb: VerbSuggest, Text: payload}
	case "add":
		return Action{Verb: VerbAdd, Text: payload}
	case "remove":
		idx, _ := strconv.ParseUint(payload, 10, 32)
		return Action{Verb: VerbRemove, Index: uint32(idx)}
	case "start_guessing":
		return Action{Verb: VerbStartGuessing}
	case "guess":
		choice, _ := strconv.ParseUint(payload, 10, 8)
		return Action{Verb: VerbGuess, Choice: uint8(choice)}
	case "leave":
		return Action{Verb: VerbLeave}
	}
	return Action{Verb: VerbInvalid}
}

// Catalog is the slice of the music catalog the core needs: search
// suggestions and resolving a source id into one song (plain id) or
// many (channel/playlist). Both calls block and may fail.
type Catalog interface {
	Suggest(query string) ([]internal.SearchResult, error)
	Resolve(sourceID string) ([]internal.Song, error)
}

// Core glues sessions to the room registry and the catalog. One Core
// serves the whole process.
type Core struct {
	Games   *Registry
	Catalog Catalog
}

func NewCore(games *Registry, catalog Catalog) *Core {
	return &Core{Games: games, Catalog: catalog}
}

// Handle executes one action for one user. Sessions call it for
// every inbound line and once more with VerbLeave when they shut
// down. Replies and broadcasts flow through the users' sinks.
func (c *Core) Handle(action Action, user *internal.User) {
	switch action.Verb {
	case VerbSetUsername:
		user.SetName(strings.Trim(action.Text, `"`))
		user.Send(internal.ServerAck{})

	case VerbNew:
		c.leaveCurrent(user)
		id, err := c.Games.CreateAndJoin(user)
		if err != nil {
			log.Printf("[Core] create game for user %d: %v", user.Id, err)
			user.Send(internal.ErrorMessage{Reason: "could not create game"})
			return
		}
		user.Send(internal.GameCreated{GameID: id})

	case VerbJoin:
		c.leaveCurrent(user)
		found := c.Games.WithRoom(action.GameID, func(room *Room) {
			room.Join(user)
		})
		if !found {
			user.Send(internal.GameNotFound{})
		}

	case VerbReadyUp:
		c.inRoom(user, "cannot ready up: not in a game", func(room *Room) {
			user.Send(room.Ready(user))
		})

	case VerbUnready:
		c.inRoom(user, "cannot unready: not in a game", func(room *Room) {
			user.Send(room.Unready(user))
		})

	case VerbSuggest:
		// Blocking upstream call; keep it off the read pump so a slow
		// catalog cannot starve the heartbeat.
		go func() {
			items, err := c.Catalog.Suggest(action.Text)
			if err != nil {
				user.Send(internal.ErrorMessage{Reason: err.Error()})
				return
			}
			user.Send(internal.Suggestions{Items: items})
		}()

	case VerbAdd:
		c.addSong(user, action.Text)

	case VerbRemove:
		c.inRoom(user, "cannot remove song: not in a game", func(room *Room) {
			user.Send(room.RemoveSong(user, action.Index))
		})

	case VerbStartGuessing:
		c.inRoom(user, "cannot start guessing: not in a game", func(room *Room) {
			room.StartGuessing(user)
		})

	case VerbGuess:
		c.inRoom(user, "cannot guess song: not in a game", func(room *Room) {
			room.Guess(user, action.Choice)
		})

	case VerbLeave:
		c.leaveCurrent(user)

	default:
		user.Send(internal.ErrorMessage{Reason: "Invalid Action"})
	}
}

// leaveCurrent pulls the user out of whatever room they are in.
// The game id is copied out before the registry lock is taken (lock
// order: registry before user).
func (c *Core) leaveCurrent(user *internal.User) {
	id, ok := user.Game()
	if !ok {
		return
	}
	c.Games.WithRoom(id, func(room *Room) {
		room.Leave(user)
	})
}

// inRoom resolves the user's room and runs fn on it under the
// registry lock, or replies notInGame when the user is roomless.
func (c *Core) inRoom(user *internal.User, notInGame string, fn func(*Room)) {
	id, ok := user.Game()
	if !ok {
		user.Send(internal.ErrorMessage{Reason: notInGame})
		return
	}
	if !c.Games.WithRoom(id, fn) {
		// Room vanished under the user; treat like not being in one.
		user.Send(internal.ErrorMessage{Reason: notInGame})
	}
}

// addSong validates the phase synchronously, acks, and downloads in
// the background. The room is re-resolved on completion: if selection
// ended meanwhile the songs are dropped, and download failures go to
// the contributor only.
func (c *Core) addSong(user *internal.User, sourceID string) {
	gameID, ok := user.Game()
	if !ok {
		user.Send(internal.ErrorMessage{Reason: "cannot add song: not in a game"})
		return
	}

	selecting := false
	found := c.Games.ReadRoom(gameID, func(room *Room) {
		selecting = room.Phase() == PhaseSelecting
	})
	if !found || !selecting {
		user.Send(internal.ErrorMessage{Reason: "cannot add song: game is not in song selection state"})
		return
	}
	user.Send(internal.ServerAck{})

	go func() {
		songs, err := c.Catalog.Resolve(sourceID)
		if err != nil {
			log.Printf("[Core] resolving %q for user %d: %v", sourceID, user.Id, err)
			user.Send(internal.ErrorMessage{Reason: err.Error()})
			return
		}

		delivered := false
		c.Games.WithRoom(gameID, func(room *Room) {
			delivered = room.AppendSongs(user, songs)
		})
		if !delivered {
			log.Printf("[Core] game %d started before song download could finish", gameID)
		}
	}()
}
