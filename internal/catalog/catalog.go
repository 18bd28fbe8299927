// Package catalog resolves song suggestions, metadata and audio
// downloads against a pool of invidious-compatible API instances.
// Everything here blocks; callers run it off the request path.
package catalog

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"songguessr/internal"
)

const (
	maxSuggestions = 6

	// Playlist/channel resolution: pick a handful of the most popular
	// videos rather than mirroring the whole thing.
	poolTopN      = 30
	songsPerMany  = 5
	fillAttempts  = 5
	downloadLimit = 5
)

// Metadata is the per-video slice of upstream metadata the game needs.
type Metadata struct {
	ID     string
	Title  string
	Author string
}

// MetadataStore is an optional persistent cache behind the in-memory
// one, so metadata survives restarts alongside the on-disk audio.
type MetadataStore interface {
	Get(ctx context.Context, id string) (Metadata, bool, error)
	Put(ctx context.Context, meta Metadata) error
}

// Downloader fetches one video's audio into dir, named by id.
type Downloader interface {
	Download(dir, id string) error
}

// Config wires a Client. Zero values get sensible defaults; tests
// inject their own instances, HTTP client and downloader.
type Config struct {
	SongsDir   string
	Instances  *InstanceFinder
	HTTPClient *http.Client
	Downloader Downloader
	Store      MetadataStore
}

// Client implements the catalog contract used by the game core.
type Client struct {
	songsDir  string
	instances *InstanceFinder
	http      *http.Client
	dl        Downloader
	store     MetadataStore

	mu         sync.RWMutex
	queryCache map[string][]internal.SearchResult
	metaCache  map[string]Metadata
}

func New(cfg Config) *Client {
	if cfg.SongsDir == "" {
		cfg.SongsDir = "songs_cache"
	}
	if cfg.Instances == nil {
		cfg.Instances = NewInstanceFinder(nil)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Downloader == nil {
		cfg.Downloader = YtDlp{}
	}
	return &Client{
		songsDir:   cfg.SongsDir,
		instances:  cfg.Instances,
		http:       cfg.HTTPClient,
		dl:         cfg.Downloader,
		store:      cfg.Store,
		queryCache: make(map[string][]internal.SearchResult),
		metaCache:  make(map[string]Metadata),
	}
}

// StartRefresher begins the background instance-pool refresh.
func (c *Client) StartRefresher() {
	c.instances.StartRefresher()
}

// searchItem is the union shape invidious returns from /search.
type searchItem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	VideoID    string `json:"videoId"`
	Author     string `json:"author"`
	AuthorID   string `json:"authorId"`
	PlaylistID string `json:"playlistId"`
}

// Suggest searches the catalog and returns up to six results.
// Results are cached per query; video hits also seed the metadata
// cache so adding a suggested song skips a round trip.
func (c *Client) Suggest(query string) ([]internal.SearchResult, error) {
	query = strings.Trim(strings.TrimSpace(query), `"`)

	c.mu.RLock()
	cached, hit := c.queryCache[query]
	c.mu.RUnlock()
	if hit {
		return cached, nil
	}

	base := c.instances.Instance()
	log.Printf("[Catalog] using instance %s for query %q", base, query)

	var items []searchItem
	if err := c.getJSON(base+"/api/v1/search?q="+url.QueryEscape(query), &items); err != nil {
		return nil, err
	}

	results := make([]internal.SearchResult, 0, maxSuggestions)
	metas := make([]Metadata, 0, maxSuggestions)
	for _, item := range items {
		if len(results) == maxSuggestions {
			break
		}
		switch item.Type {
		case "video":
			results = append(results, internal.SearchResult{Name: item.Title, ID: item.VideoID, Type: "video"})
			metas = append(metas, Metadata{ID: item.VideoID, Title: item.Title, Author: item.Author})
		case "channel":
			results = append(results, internal.SearchResult{Name: item.Author, ID: item.AuthorID, Type: "channel"})
		case "playlist":
			results = append(results, internal.SearchResult{Name: item.Title, ID: item.PlaylistID, Type: "playlist"})
		}
	}
	if len(results) == 0 {
		return []internal.SearchResult{}, nil
	}

	c.mu.Lock()
	c.queryCache[query] = results
	for _, m := range metas {
		c.metaCache[m.ID] = m
	}
	c.mu.Unlock()
	c.storeMetas(metas)

	return results, nil
}

// Resolve turns a source id into songs: channels (UC…) and playlists
// (PL…) yield several, anything else exactly one.
func (c *Client) Resolve(sourceID string) ([]internal.Song, error) {
	switch {
	case strings.HasPrefix(sourceID, "UC"), strings.HasPrefix(sourceID, "PL"):
		vids, err := c.listVideos(sourceID)
		if err != nil {
			return nil, err
		}
		return c.downloadSome(vids)
	default:
		song, err := c.downloadSong(sourceID)
		if err != nil {
			return nil, err
		}
		return []internal.Song{song}, nil
	}
}

// videoListing is what channel and playlist endpoints return.
type videoListing struct {
	Videos []searchItem `json:"videos"`
}

func (c *Client) listVideos(sourceID string) ([]searchItem, error) {
	if strings.HasPrefix(sourceID, "UC") {
		var listing videoListing
		err := c.getJSON(c.instances.Instance()+"/api/v1/channels/"+sourceID+"/videos?sort_by=popular", &listing)
		if err != nil {
			// Region-blocked instances are common; one retry on the
			// next instance in rotation.
			if err = c.getJSON(c.instances.Instance()+"/api/v1/channels/"+sourceID+"/videos?sort_by=popular", &listing); err != nil {
				return nil, err
			}
		}
		return listing.Videos, nil
	}

	var listing videoListing
	if err := c.getJSON(c.instances.Instance()+"/api/v1/playlists/"+sourceID, &listing); err != nil {
		return nil, err
	}
	return listing.Videos, nil
}

// downloadSome grabs up to five random songs from the top thirty
// videos of a listing, in parallel, then retries a few times to fill
// the quota when individual downloads fail.
func (c *Client) downloadSome(vids []searchItem) ([]internal.Song, error) {
	if len(vids) == 0 {
		return nil, fmt.Errorf("source has no videos")
	}
	top := vids
	if len(top) > poolTopN {
		top = top[:poolTopN]
	}
	want := songsPerMany
	if len(top) < want {
		want = len(top)
	}

	picks := rand.Perm(len(top))[:want]

	var (
		mu    sync.Mutex
		songs []internal.Song
	)
	var g errgroup.Group
	g.SetLimit(downloadLimit)
	for _, i := range picks {
		id := top[i].VideoID
		g.Go(func() error {
			song, err := c.downloadSong(id)
			if err != nil {
				log.Printf("[Catalog] download %s failed: %v", id, err)
				return nil // individual failures are retried below
			}
			mu.Lock()
			songs = append(songs, song)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for attempt := 0; len(songs) < want && attempt < fillAttempts; attempt++ {
		candidate := top[rand.Intn(len(top))]
		if hasSong(songs, candidate.VideoID) {
			continue
		}
		if song, err := c.downloadSong(candidate.VideoID); err == nil {
			songs = append(songs, song)
		}
	}

	if len(songs) == 0 {
		return nil, fmt.Errorf("could not download any songs from source")
	}
	return songs, nil
}

func hasSong(songs []internal.Song, id string) bool {
	for _, s := range songs {
		if s.Id == id {
			return true
		}
	}
	return false
}

// metadata resolves a video's title and author: memory cache, then
// the persistent store, then the API (filling both on the way out).
func (c *Client) metadata(id string) (Metadata, error) {
	c.mu.RLock()
	meta, hit := c.metaCache[id]
	c.mu.RUnlock()
	if hit {
		return meta, nil
	}

	if c.store != nil {
		stored, ok, err := c.store.Get(context.Background(), id)
		if err != nil {
			log.Printf("[Catalog] metadata store get %s: %v", id, err)
		} else if ok {
			c.mu.Lock()
			c.metaCache[id] = stored
			c.mu.Unlock()
			return stored, nil
		}
	}

	var video struct {
		Title  string `json:"title"`
		Author string `json:"author"`
	}
	if err := c.getJSON(c.instances.Instance()+"/api/v1/videos/"+id, &video); err != nil {
		return Metadata{}, err
	}
	meta = Metadata{ID: id, Title: video.Title, Author: video.Author}

	c.mu.Lock()
	c.metaCache[id] = meta
	c.mu.Unlock()
	c.storeMetas([]Metadata{meta})
	return meta, nil
}

// storeMetas writes through to the persistent store, best effort.
func (c *Client) storeMetas(metas []Metadata) {
	if c.store == nil || len(metas) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, m := range metas {
			if err := c.store.Put(ctx, m); err != nil {
				log.Printf("[Catalog] metadata store put %s: %v", m.ID, err)
			}
		}
	}()
}

func (c *Client) getJSON(rawURL string, v any) error {
	resp, err := c.http.Get(rawURL)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog request failed: %s returned %s", rawURL, resp.Status)
	}
	if err := jsonDecode(resp.Body, v); err != nil {
		return fmt.Errorf("catalog response invalid: %w", err)
	}
	return nil
}
