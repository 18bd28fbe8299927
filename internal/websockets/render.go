package websockets

import (
	"encoding/json"
	"fmt"
	"log"

	"songguessr/internal"
)

// Render turns one ServerMessage into its wire line: a fixed verb
// prefix, followed by the payload (JSON where the payload is
// structured). This is the single source of truth for the outbound
// format.
func Render(msg internal.ServerMessage) string {
	switch m := msg.(type) {
	case internal.ServerAck:
		return "k"
	case internal.ErrorMessage:
		return fmt.Sprintf("ERR %q", m.Reason)
	case internal.GameCreated:
		return fmt.Sprintf("game_created %d", m.GameID)
	case internal.GameNotFound:
		return "game_not_found"
	case internal.UserJoin:
		return fmt.Sprintf("user_join %q", m.Name)
	case internal.UserLeave:
		return fmt.Sprintf("user_leave %q", m.Name)
	case internal.UserReady:
		return fmt.Sprintf("user_ready %q", m.Name)
	case internal.UserUnready:
		return fmt.Sprintf("user_unready %q", m.Name)
	case internal.GameStartAt:
		return fmt.Sprintf("game_start_at %d", m.UnixMs)
	case internal.GameStartSelect:
		return "game_start_select"
	case internal.Suggestions:
		return "suggestions " + renderJSON(m.Items)
	case internal.AddedSong:
		return "added_song " + renderJSON(m.Song)
	case internal.RemovedSong:
		return fmt.Sprintf("removed_song %d", m.Index)
	case internal.GameStartGuessing:
		return "game_start_guessing"
	case internal.GamePlayAudio:
		return "game_play_audio " + m.SongID
	case internal.GameGuessOptions:
		return "game_guess_options " + renderJSON(m.Options)
	case internal.Correct:
		return fmt.Sprintf("correct %d", m.Index)
	case internal.LeaderBoard:
		return "leader_board " + renderJSON(m.Entries)
	case internal.GameEnded:
		return "game_ended"
	}
	// The message set is closed; hitting this is a bug.
	log.Printf("[WS] no rendering for %T", msg)
	return fmt.Sprintf("%#v", msg)
}

func renderJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] marshal %T: %v", v, err)
		return "null"
	}
	return string(b)
}
