package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"songguessr/internal"
)

// YtDlp shells out to yt-dlp for the actual audio fetch. Files are
// written into dir named exactly by video id, which is what the
// static songs route serves.
type YtDlp struct{}

func (YtDlp) Download(dir, id string) error {
	cmd := exec.Command("yt-dlp",
		"-f", "bestaudio[acodec=opus]",
		"--max-filesize", "6000k",
		"-o", "%(id)s",
		"--", id,
	)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed for %s: %w: %s", id, err, out)
	}
	return nil
}

// downloadSong makes sure the audio for id sits in the songs dir and
// returns the Song describing it. Already-cached files skip the
// downloader entirely.
func (c *Client) downloadSong(id string) (internal.Song, error) {
	meta, err := c.metadata(id)
	if err != nil {
		return internal.Song{}, err
	}

	if err := os.MkdirAll(c.songsDir, 0o755); err != nil {
		return internal.Song{}, fmt.Errorf("creating songs dir: %w", err)
	}

	path := filepath.Join(c.songsDir, id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := c.dl.Download(c.songsDir, id); err != nil {
			return internal.Song{}, err
		}
	}

	// yt-dlp can exit zero without producing a file (size cap).
	if _, err := os.Stat(path); err != nil {
		return internal.Song{}, fmt.Errorf("song file for %s missing after download", id)
	}

	return internal.Song{Id: id, Title: meta.Title, Artist: meta.Author}, nil
}

func jsonDecode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
