package game

import "time"

// =============================================================================
// CLOCK & SCHEDULING
// =============================================================================

// Clock is the time source for the lobby countdown and the round
// engine. Production uses SystemClock; tests substitute a stub so
// rounds run instantly.
type Clock interface {
	Now() time.Time
	// NowUnixMs is the wall-clock instant broadcast in GameStartAt.
	NowUnixMs() uint64
	// After runs fn on its own goroutine once d has elapsed. There is
	// no cancellation; callers re-check state when fn fires.
	After(d time.Duration, fn func())
	// Deadline returns a channel that receives once d has elapsed.
	Deadline(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

// Timings groups every delay the state machine uses. Tests shrink
// them; the server shortens StartDelay in development.
type Timings struct {
	StartDelay       time.Duration // ready-up countdown before song selection
	GuessDeadline    time.Duration // per-round guess collection window
	RevealPause      time.Duration // between Correct and LeaderBoard
	LeaderboardPause time.Duration // between LeaderBoard and the next round
	EndPause         time.Duration // after the final round, before GameEnded
}

func DefaultTimings() Timings {
	return Timings{
		StartDelay:       12 * time.Second,
		GuessDeadline:    180 * time.Second,
		RevealPause:      2 * time.Second,
		LeaderboardPause: 5 * time.Second,
		EndPause:         10 * time.Second,
	}
}

// SystemClock implements Clock on the real time package.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NowUnixMs() uint64 { return uint64(time.Now().UnixMilli()) }

func (SystemClock) After(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

func (SystemClock) Deadline(d time.Duration) <-chan time.Time { return time.After(d) }

func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
