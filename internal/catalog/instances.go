package catalog

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// INSTANCE POOL
// =============================================================================

const (
	instanceCount   = 3
	refreshInterval = 8 * time.Hour

	// Public registry of invidious instances, healthiest first.
	defaultInstancesAPI = "https://api.invidious.io/instances.json?sort_by=health"
)

// backupInstances are used whenever the registry cannot be reached
// or parsed.
var backupInstances = []string{
	"https://yt.oelrichsgarcia.de",
	"https://invidious.einfachzocken.eu",
	"https://iv.nboeck.de",
}

// InstanceFinder keeps a small pool of equivalent upstream API base
// URLs and hands them out round-robin.
type InstanceFinder struct {
	mu        sync.RWMutex
	instances []string
	rr        atomic.Uint64

	http   *http.Client
	apiURL string
}

// NewInstanceFinder seeds the pool. An empty seed falls back to the
// built-in backup list until the first refresh.
func NewInstanceFinder(seed []string) *InstanceFinder {
	if len(seed) == 0 {
		seed = backupInstances
	}
	return &InstanceFinder{
		instances: append([]string(nil), seed...),
		http:      &http.Client{Timeout: 15 * time.Second},
		apiURL:    defaultInstancesAPI,
	}
}

// Instance returns the next base URL in rotation.
func (f *InstanceFinder) Instance() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.rr.Add(1) - 1
	return f.instances[idx%uint64(len(f.instances))]
}

// Update replaces the pool with the healthiest instances from the
// registry, or the backup list when that fails.
func (f *InstanceFinder) Update() {
	best := f.fetchBest()
	log.Printf("[InstanceFinder] using instances: %v", best)

	f.mu.Lock()
	f.instances = best
	f.mu.Unlock()
}

// StartRefresher updates the pool now and then every 8 hours, on a
// background goroutine.
func (f *InstanceFinder) StartRefresher() {
	log.Printf("[InstanceFinder] starting instance updater")
	go func() {
		for {
			f.Update()
			time.Sleep(refreshInterval)
		}
	}()
}

// instances.json rows look like ["domain", {"uri": "https://domain", ...}].
func (f *InstanceFinder) fetchBest() []string {
	resp, err := f.http.Get(f.apiURL)
	if err != nil {
		log.Printf("[InstanceFinder] couldn't get instances, using backup instances: %v", err)
		return backupInstances
	}
	defer resp.Body.Close()

	var rows [][2]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		log.Printf("[InstanceFinder] failed to parse instances.json: %v", err)
		return backupInstances
	}

	uris := make([]string, 0, instanceCount)
	for _, row := range rows {
		if len(uris) == instanceCount {
			break
		}
		var meta struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(row[1], &meta); err != nil || meta.URI == "" {
			var name string
			if err := json.Unmarshal(row[0], &name); err != nil || name == "" {
				continue
			}
			meta.URI = "https://" + name
		}
		uris = append(uris, meta.URI)
	}
	if len(uris) == 0 {
		return backupInstances
	}
	return uris
}
