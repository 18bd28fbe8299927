package game

import (
	"time"

	"songguessr/internal"
)

// =============================================================================
// SCORING & LEADERBOARD
// =============================================================================

// tenths converts the time since round start into tenths of a second,
// truncated to whole seconds first. The truncation is part of the
// scoring contract and must not be "fixed".
func tenths(d time.Duration) uint64 {
	return uint64(d/time.Second) * 10
}

// scoreDelta is the points awarded for a correct guess after t tenths
// of a second. The inner 1/(t+33) is integer division and always
// zero, so the whole rule collapses to 33 — a known quirk that is
// kept bit-exact for regression parity.
func scoreDelta(t uint64) uint64 {
	return 33 + (1/(t+33))*2500*ilog10(t+100)
}

func ilog10(n uint64) uint64 {
	var l uint64
	for n >= 10 {
		n /= 10
		l++
	}
	return l
}

type boardEntry struct {
	user  *internal.User
	score uint64
}

// leaderboard keeps entries in display order: descending score, ties
// broken by whoever attained the score first. An entry appears on a
// user's first scoring event.
type leaderboard struct {
	rows []boardEntry
}

func newLeaderboard() *leaderboard {
	return &leaderboard{}
}

func (b *leaderboard) award(user *internal.User, delta uint64) {
	idx := -1
	for i := range b.rows {
		if b.rows[i].user.Id == user.Id {
			idx = i
			break
		}
	}
	if idx == -1 {
		b.rows = append(b.rows, boardEntry{user: user})
		idx = len(b.rows) - 1
	}
	b.rows[idx].score += delta

	// Bubble up past strictly lower scores only, so earlier attainers
	// of the same score stay ahead.
	for idx > 0 && b.rows[idx-1].score < b.rows[idx].score {
		b.rows[idx-1], b.rows[idx] = b.rows[idx], b.rows[idx-1]
		idx--
	}
}

func (b *leaderboard) entries() []internal.LeaderboardEntry {
	out := make([]internal.LeaderboardEntry, len(b.rows))
	for i, row := range b.rows {
		out[i] = internal.LeaderboardEntry{Name: row.user.Name(), Score: row.score}
	}
	return out
}
