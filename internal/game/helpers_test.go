package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"songguessr/internal"
)

// chanSink records everything delivered to one fake session.
type chanSink struct {
	ch chan internal.ServerMessage
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan internal.ServerMessage, 128)}
}

func (s *chanSink) Deliver(msg internal.ServerMessage) {
	select {
	case s.ch <- msg:
	default:
	}
}

// next waits for the sink's next message.
func next(t *testing.T, s *chanSink) internal.ServerMessage {
	t.Helper()
	select {
	case msg := <-s.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a message")
		return nil
	}
}

// expect waits for the next message and requires its concrete type.
func expect[T internal.ServerMessage](t *testing.T, s *chanSink) T {
	t.Helper()
	msg := next(t, s)
	v, ok := msg.(T)
	if !ok {
		t.Fatalf("expected %T, got %#v", v, msg)
	}
	return v
}

// expectNothing requires the sink to stay quiet for a moment.
func expectNothing(t *testing.T, s *chanSink) {
	t.Helper()
	select {
	case msg := <-s.ch:
		t.Fatalf("expected no message, got %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// stubClock freezes time and collects After callbacks so tests fire
// the lobby countdown by hand. Deadline returns a test-controlled
// channel; the nil default never fires.
type stubClock struct {
	mu       sync.Mutex
	now      time.Time
	pending  []func()
	deadline chan time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) NowUnixMs() uint64 {
	return uint64(c.Now().UnixMilli())
}

func (c *stubClock) After(d time.Duration, fn func()) {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	c.mu.Unlock()
}

func (c *stubClock) Deadline(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

func (c *stubClock) Sleep(d time.Duration) {}

// firePending runs and clears all scheduled callbacks.
func (c *stubClock) firePending() {
	c.mu.Lock()
	fns := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *stubClock) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// makeDeadline arms a shared deadline channel; each fireDeadline call
// ends one round wait.
func (c *stubClock) makeDeadline() {
	c.mu.Lock()
	c.deadline = make(chan time.Time, 4)
	c.mu.Unlock()
}

func (c *stubClock) fireDeadline() {
	c.mu.Lock()
	ch := c.deadline
	c.mu.Unlock()
	ch <- time.Time{}
}

// fakeCatalog resolves from a fixed table.
type fakeCatalog struct {
	suggestions []internal.SearchResult
	songs       map[string][]internal.Song
	err         error
}

func (f *fakeCatalog) Suggest(query string) ([]internal.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.suggestions, nil
}

func (f *fakeCatalog) Resolve(sourceID string) ([]internal.Song, error) {
	if f.err != nil {
		return nil, f.err
	}
	songs, ok := f.songs[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source id %q", sourceID)
	}
	return songs, nil
}

// newTestCore builds a core on a stub clock with instant pauses.
func newTestCore(cat *fakeCatalog) (*Core, *stubClock) {
	clock := newStubClock()
	timings := DefaultTimings()
	if cat == nil {
		cat = &fakeCatalog{}
	}
	return NewCore(NewRegistry(clock, timings), cat), clock
}

// newTestUser returns a user with an attached recording sink.
func newTestUser(id uint32, name string) (*internal.User, *chanSink) {
	u := internal.NewUser(id, name)
	sink := newChanSink()
	u.AttachSink(sink)
	return u, sink
}

func song(id string) internal.Song {
	return internal.Song{Id: id, Title: "title-" + id, Artist: "artist-" + id}
}
