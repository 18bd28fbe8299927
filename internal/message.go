package internal

// ServerMessage is the closed set of outbound events the core emits.
// Only the session layer knows how each variant is rendered on the
// wire; everything else passes these values around untouched.
type ServerMessage interface {
	serverMessage()
}

// ServerAck acknowledges an action that produced no other reply.
type ServerAck struct{}

// ErrorMessage carries a human-readable error back to one session.
type ErrorMessage struct {
	Reason string
}

// GameCreated is sent to the creator of a new room.
type GameCreated struct {
	GameID uint16
}

// GameNotFound is sent when a join targets an unknown room id.
type GameNotFound struct{}

// Lobby events, broadcast to the whole room.
type (
	UserJoin    struct{ Name string }
	UserLeave   struct{ Name string }
	UserReady   struct{ Name string }
	UserUnready struct{ Name string }
)

// GameStartAt announces the wall-clock instant the game will start,
// in unix milliseconds.
type GameStartAt struct {
	UnixMs uint64
}

// GameStartSelect marks the transition into song selection.
type GameStartSelect struct{}

// Suggestions carries catalog search results to the requester.
type Suggestions struct {
	Items []SearchResult
}

// AddedSong confirms one resolved song to its contributor.
type AddedSong struct {
	Song Song
}

// RemovedSong confirms removal of the contributor's song at Index.
type RemovedSong struct {
	Index uint32
}

// Guessing-phase events.
type (
	GameStartGuessing struct{}
	GamePlayAudio     struct{ SongID string }
	GameGuessOptions  struct{ Options []GuessOption }
	Correct           struct{ Index uint8 }
	LeaderBoard       struct{ Entries []LeaderboardEntry }
	GameEnded         struct{}
)

func (ServerAck) serverMessage()         {}
func (ErrorMessage) serverMessage()      {}
func (GameCreated) serverMessage()       {}
func (GameNotFound) serverMessage()      {}
func (UserJoin) serverMessage()          {}
func (UserLeave) serverMessage()         {}
func (UserReady) serverMessage()         {}
func (UserUnready) serverMessage()       {}
func (GameStartAt) serverMessage()       {}
func (GameStartSelect) serverMessage()   {}
func (Suggestions) serverMessage()       {}
func (AddedSong) serverMessage()         {}
func (RemovedSong) serverMessage()       {}
func (GameStartGuessing) serverMessage() {}
func (GamePlayAudio) serverMessage()     {}
func (GameGuessOptions) serverMessage()  {}
func (Correct) serverMessage()           {}
func (LeaderBoard) serverMessage()       {}
func (GameEnded) serverMessage()         {}
