package game

import (
	"errors"
	"testing"
	"time"

	"songguessr/internal"
)

func TestParseAction(t *testing.T) {
	cases := []struct {
		line string
		want Action
	}{
		{`set_username "Alice"`, Action{Verb: VerbSetUsername, Text: `"Alice"`}},
		{"new", Action{Verb: VerbNew}},
		{"join 42", Action{Verb: VerbJoin, GameID: 42}},
		{"join banana", Action{Verb: VerbJoin, GameID: 0}},
		{"ready_up", Action{Verb: VerbReadyUp}},
		{"unready", Action{Verb: VerbUnready}},
		{"suggest never gonna", Action{Verb: VerbSuggest, Text: "never gonna"}},
		{"add dQw4w9WgXcQ", Action{Verb: VerbAdd, Text: "dQw4w9WgXcQ"}},
		{"remove 3", Action{Verb: VerbRemove, Index: 3}},
		{"start_guessing", Action{Verb: VerbStartGuessing}},
		{"guess 2", Action{Verb: VerbGuess, Choice: 2}},
		{"leave", Action{Verb: VerbLeave}},
		{"start", Action{Verb: VerbInvalid}},
		{"bogus payload", Action{Verb: VerbInvalid}},
		{"", Action{Verb: VerbInvalid}},
	}
	for _, tc := range cases {
		if got := ParseAction(tc.line); got != tc.want {
			t.Errorf("ParseAction(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func drain(s *chanSink) {
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// newLobby builds a two-player lobby and drains the setup chatter.
func newLobby(t *testing.T, cat *fakeCatalog) (*Core, *stubClock, *internal.User, *chanSink, *internal.User, *chanSink, uint16) {
	t.Helper()
	core, clock := newTestCore(cat)
	core.Games.randID = func() uint16 { return 42 }

	a, sinkA := newTestUser(1, "A")
	b, sinkB := newTestUser(2, "B")

	core.Handle(Action{Verb: VerbNew}, a)
	created := expect[internal.GameCreated](t, sinkA)
	core.Handle(Action{Verb: VerbJoin, GameID: created.GameID}, b)

	drain(sinkA)
	drain(sinkB)
	return core, clock, a, sinkA, b, sinkB, created.GameID
}

// startSelecting readies both players and fires the countdown.
func startSelecting(t *testing.T, core *Core, clock *stubClock, a, b *internal.User, sinks ...*chanSink) {
	t.Helper()
	core.Handle(Action{Verb: VerbReadyUp}, a)
	core.Handle(Action{Verb: VerbReadyUp}, b)
	clock.firePending()
	for _, s := range sinks {
		drain(s)
	}
}

func TestCreateAndJoinBroadcasts(t *testing.T) {
	core, _ := newTestCore(nil)
	core.Games.randID = func() uint16 { return 42 }

	a, sinkA := newTestUser(1, "A")
	b, sinkB := newTestUser(2, "B")

	core.Handle(Action{Verb: VerbNew}, a)
	if created := expect[internal.GameCreated](t, sinkA); created.GameID != 42 {
		t.Fatalf("game id = %d, want 42", created.GameID)
	}
	if id, ok := a.Game(); !ok || id != 42 {
		t.Fatalf("creator game = (%d, %v), want (42, true)", id, ok)
	}

	core.Handle(Action{Verb: VerbJoin, GameID: 42}, b)
	// The room hears about the newcomer; the newcomer hears the roster.
	if msg := expect[internal.UserJoin](t, sinkA); msg.Name != "B" {
		t.Fatalf("a heard join of %q, want B", msg.Name)
	}
	if msg := expect[internal.UserJoin](t, sinkB); msg.Name != "A" {
		t.Fatalf("b heard roster entry %q, want A", msg.Name)
	}
}

func TestJoinUnknownGame(t *testing.T) {
	core, _ := newTestCore(nil)
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbJoin, GameID: 1234}, a)
	expect[internal.GameNotFound](t, sinkA)
	if _, ok := a.Game(); ok {
		t.Fatalf("user joined a game that does not exist")
	}
}

func TestJoinWhileInGameLeavesOldRoom(t *testing.T) {
	core, _ := newTestCore(nil)
	ids := []uint16{10, 20}
	core.Games.randID = func() uint16 {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbNew}, a)
	expect[internal.GameCreated](t, sinkA)
	core.Handle(Action{Verb: VerbNew}, a)

	// Leaving the first room broadcasts before removal, so the leaver
	// hears their own departure.
	expect[internal.UserLeave](t, sinkA)
	if created := expect[internal.GameCreated](t, sinkA); created.GameID != 20 {
		t.Fatalf("second game id = %d, want 20", created.GameID)
	}
	if core.Games.WithRoom(10, func(*Room) {}) {
		t.Fatalf("first room survived its only player moving on")
	}
}

func TestLeaveWhenNotInGameIsSilent(t *testing.T) {
	core, _ := newTestCore(nil)
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbLeave}, a)
	expectNothing(t, sinkA)
}

func TestSetUsername(t *testing.T) {
	core, _ := newTestCore(nil)
	a, sinkA := newTestUser(1, "User 7")

	core.Handle(Action{Verb: VerbSetUsername, Text: `"Alice"`}, a)
	expect[internal.ServerAck](t, sinkA)
	if a.Name() != "Alice" {
		t.Fatalf("name = %q, want Alice", a.Name())
	}

	core.Handle(Action{Verb: VerbSetUsername, Text: `"Alice"`}, a)
	expect[internal.ServerAck](t, sinkA)
	if a.Name() != "Alice" {
		t.Fatalf("name after repeat = %q, want Alice", a.Name())
	}
}

func TestInvalidVerb(t *testing.T) {
	core, _ := newTestCore(nil)
	a, sinkA := newTestUser(1, "A")

	core.Handle(ParseAction("start"), a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "Invalid Action" {
		t.Fatalf("reason = %q, want Invalid Action", msg.Reason)
	}
}

func TestReadyUpCountdown(t *testing.T) {
	core, clock, a, sinkA, b, sinkB, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbReadyUp}, a)
	if msg := expect[internal.UserReady](t, sinkA); msg.Name != "A" {
		t.Fatalf("a heard ready of %q, want A", msg.Name)
	}
	expect[internal.ServerAck](t, sinkA)
	expect[internal.UserReady](t, sinkB)
	expectNothing(t, sinkB)

	core.Handle(Action{Verb: VerbReadyUp}, b)
	expect[internal.UserReady](t, sinkA)
	startAt := expect[internal.GameStartAt](t, sinkA)
	want := clock.NowUnixMs() + uint64(DefaultTimings().StartDelay/time.Millisecond)
	if startAt.UnixMs != want {
		t.Fatalf("start at %d, want %d", startAt.UnixMs, want)
	}
	expect[internal.UserReady](t, sinkB)
	expect[internal.GameStartAt](t, sinkB)
	expect[internal.ServerAck](t, sinkB)

	clock.firePending()
	expect[internal.GameStartSelect](t, sinkA)
	expect[internal.GameStartSelect](t, sinkB)
}

func TestDuplicateReadyDoesNotStart(t *testing.T) {
	core, clock, a, sinkA, _, sinkB, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbReadyUp}, a)
	core.Handle(Action{Verb: VerbReadyUp}, a)
	drain(sinkA)

	if n := clock.pendingCount(); n != 0 {
		t.Fatalf("countdown scheduled with only one distinct ready")
	}
	expect[internal.UserReady](t, sinkB)
	expectNothing(t, sinkB)
}

func TestUnready(t *testing.T) {
	core, clock, a, sinkA, b, sinkB, _ := newLobby(t, nil)

	// Nobody ready yet.
	core.Handle(Action{Verb: VerbUnready}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot unready: no one is ready" {
		t.Fatalf("reason = %q", msg.Reason)
	}

	core.Handle(Action{Verb: VerbReadyUp}, a)
	drain(sinkA)
	drain(sinkB)

	// b never readied: silent ack, no broadcast.
	core.Handle(Action{Verb: VerbUnready}, b)
	expect[internal.ServerAck](t, sinkB)
	expectNothing(t, sinkA)

	core.Handle(Action{Verb: VerbUnready}, a)
	if msg := expect[internal.UserUnready](t, sinkA); msg.Name != "A" {
		t.Fatalf("a heard unready of %q, want A", msg.Name)
	}
	expect[internal.ServerAck](t, sinkA)
	expect[internal.UserUnready](t, sinkB)

	// Readying again must now require both players once more.
	core.Handle(Action{Verb: VerbReadyUp}, a)
	drain(sinkA)
	drain(sinkB)
	if n := clock.pendingCount(); n != 0 {
		t.Fatalf("countdown scheduled after an unready round-trip")
	}
}

func TestUnreadyCancelsScheduledStart(t *testing.T) {
	core, clock, a, sinkA, b, sinkB, id := newLobby(t, nil)

	core.Handle(Action{Verb: VerbReadyUp}, a)
	core.Handle(Action{Verb: VerbReadyUp}, b)
	core.Handle(Action{Verb: VerbUnready}, a)
	drain(sinkA)
	drain(sinkB)

	clock.firePending()
	expectNothing(t, sinkA)
	expectNothing(t, sinkB)

	phase := PhaseGuessing
	core.Games.ReadRoom(id, func(r *Room) { phase = r.Phase() })
	if phase != PhaseLobby {
		t.Fatalf("phase = %s, want lobby", phase)
	}
}

func TestLeaverGivesBackReady(t *testing.T) {
	core, clock, a, sinkA, b, sinkB, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbReadyUp}, a)
	core.Handle(Action{Verb: VerbLeave}, a)
	drain(sinkA)
	if msg := next(t, sinkB); msg != (internal.UserReady{Name: "A"}) {
		t.Fatalf("got %#v, want user_ready A", msg)
	}
	if msg := next(t, sinkB); msg != (internal.UserLeave{Name: "A"}) {
		t.Fatalf("got %#v, want user_leave A", msg)
	}

	// b is alone now; one ready starts the countdown.
	core.Handle(Action{Verb: VerbReadyUp}, b)
	expect[internal.UserReady](t, sinkB)
	expect[internal.GameStartAt](t, sinkB)
	expect[internal.ServerAck](t, sinkB)
	clock.firePending()
	expect[internal.GameStartSelect](t, sinkB)
}

func TestReadyUpOutsideGame(t *testing.T) {
	core, _ := newTestCore(nil)
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbReadyUp}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot ready up: not in a game" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}

func TestJoinOutsideLobbyRejected(t *testing.T) {
	core, clock := newTestCore(nil)
	core.Games.randID = func() uint16 { return 42 }
	a, sinkA := newTestUser(1, "A")
	b, sinkB := newTestUser(2, "B")

	core.Handle(Action{Verb: VerbNew}, a)
	core.Handle(Action{Verb: VerbReadyUp}, a)
	clock.firePending()
	drain(sinkA)

	core.Handle(Action{Verb: VerbJoin, GameID: 42}, b)
	if msg := expect[internal.ErrorMessage](t, sinkB); msg.Reason != "cannot join game: game is not in lobby state" {
		t.Fatalf("reason = %q", msg.Reason)
	}
	if _, ok := b.Game(); ok {
		t.Fatalf("rejected joiner ended up in the game")
	}
	players := -1
	core.Games.ReadRoom(42, func(r *Room) { players = len(r.Players) })
	if players != 1 {
		t.Fatalf("room has %d players, want 1", players)
	}
	expectNothing(t, sinkA)
}

func TestSuggestDelivers(t *testing.T) {
	cat := &fakeCatalog{suggestions: []internal.SearchResult{
		{Name: "Song One", ID: "id1", Type: "video"},
		{Name: "Artist", ID: "UCabc", Type: "channel"},
	}}
	core, _ := newTestCore(cat)
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbSuggest, Text: "song"}, a)
	got := expect[internal.Suggestions](t, sinkA)
	if len(got.Items) != 2 || got.Items[0].ID != "id1" {
		t.Fatalf("suggestions = %+v", got.Items)
	}
}

func TestSuggestError(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("instance down")}
	core, _ := newTestCore(cat)
	a, sinkA := newTestUser(1, "A")

	core.Handle(Action{Verb: VerbSuggest, Text: "song"}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "instance down" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}

func TestAddSongOutsideSelection(t *testing.T) {
	core, _, a, sinkA, _, _, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbAdd, Text: "abc"}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot add song: game is not in song selection state" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}

func TestAddAndRemoveSong(t *testing.T) {
	cat := &fakeCatalog{songs: map[string][]internal.Song{
		"PLmix": {song("s1"), song("s2")},
	}}
	core, clock, a, sinkA, b, sinkB, _ := newLobby(t, cat)
	startSelecting(t, core, clock, a, b, sinkA, sinkB)

	core.Handle(Action{Verb: VerbAdd, Text: "PLmix"}, a)
	expect[internal.ServerAck](t, sinkA)
	if msg := expect[internal.AddedSong](t, sinkA); msg.Song.Id != "s1" {
		t.Fatalf("first added song = %+v", msg.Song)
	}
	if msg := expect[internal.AddedSong](t, sinkA); msg.Song.Id != "s2" {
		t.Fatalf("second added song = %+v", msg.Song)
	}
	// Additions stay private to the contributor.
	expectNothing(t, sinkB)

	core.Handle(Action{Verb: VerbRemove, Index: 1}, a)
	if msg := expect[internal.RemovedSong](t, sinkA); msg.Index != 1 {
		t.Fatalf("removed index = %d, want 1", msg.Index)
	}
	core.Handle(Action{Verb: VerbRemove, Index: 5}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot remove song: index out of range" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}

func TestAddSongResolveError(t *testing.T) {
	cat := &fakeCatalog{songs: map[string][]internal.Song{}}
	core, clock, a, sinkA, b, sinkB, _ := newLobby(t, cat)
	startSelecting(t, core, clock, a, b, sinkA, sinkB)

	core.Handle(Action{Verb: VerbAdd, Text: "nope"}, a)
	expect[internal.ServerAck](t, sinkA)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != `unknown source id "nope"` {
		t.Fatalf("reason = %q", msg.Reason)
	}
	expectNothing(t, sinkB)
}

func TestStartGuessingRequiresHost(t *testing.T) {
	core, clock, a, sinkA, b, sinkB, id := newLobby(t, nil)
	startSelecting(t, core, clock, a, b, sinkA, sinkB)

	core.Handle(Action{Verb: VerbStartGuessing}, b)
	if msg := expect[internal.ErrorMessage](t, sinkB); msg.Reason != "cannot start guessing: you are not the leader" {
		t.Fatalf("reason = %q", msg.Reason)
	}
	phase := PhaseLobby
	core.Games.ReadRoom(id, func(r *Room) { phase = r.Phase() })
	if phase != PhaseSelecting {
		t.Fatalf("phase = %s, want selecting_songs", phase)
	}
}

func TestStartGuessingOutsideSelection(t *testing.T) {
	core, _, a, sinkA, _, _, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbStartGuessing}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot start guessing: game is not in song selection state" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}

func TestGuessOutsideGuessing(t *testing.T) {
	core, _, a, sinkA, _, _, _ := newLobby(t, nil)

	core.Handle(Action{Verb: VerbGuess, Choice: 0}, a)
	if msg := expect[internal.ErrorMessage](t, sinkA); msg.Reason != "cannot guess song: game is not in guessing state" {
		t.Fatalf("reason = %q", msg.Reason)
	}
}
