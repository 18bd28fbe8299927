package internal

import "encoding/json"

// Song is one cached track. Id doubles as the filename under the
// static songs route, so it is all a client needs to fetch the audio.
// Songs are immutable once constructed and compare by Id.
type Song struct {
	Id     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// SearchResult is a single catalog suggestion. Type is one of
// "video", "channel" or "playlist".
type SearchResult struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type string `json:"type"`
}

// GuessOption is one of the four (title, artist) choices shown per
// round. It marshals as a two-element array to match the wire format.
type GuessOption struct {
	Title  string
	Artist string
}

func (o GuessOption) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{o.Title, o.Artist})
}

func (o *GuessOption) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	o.Title, o.Artist = pair[0], pair[1]
	return nil
}

// LeaderboardEntry is one scoreboard row, marshalled as [name, score].
type LeaderboardEntry struct {
	Name  string
	Score uint64
}

func (e LeaderboardEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Name, e.Score})
}
