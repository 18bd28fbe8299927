package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"songguessr/internal/catalog"
	"songguessr/internal/game"
)

// Server holds what the routes need. Configuration comes from the
// environment (a .env file is honored via the godotenv autoload):
//
//	PORT                 listen port (default 8080)
//	SONGS_DIR            audio cache dir served under /songs (default songs_cache)
//	APP_ENV              "development" shortens the start countdown to 2s
//	DATABASE_URL         optional Postgres DSN for the catalog metadata cache
//	INVIDIOUS_INSTANCES  optional comma-separated instance base URLs
type Server struct {
	port     int
	songsDir string
	core     *game.Core
}

func NewServer() *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}
	songsDir := os.Getenv("SONGS_DIR")
	if songsDir == "" {
		songsDir = "songs_cache"
	}

	timings := game.DefaultTimings()
	if os.Getenv("APP_ENV") == "development" {
		timings.StartDelay = 2 * time.Second
		log.Printf("[Server] development mode: start countdown is %s", timings.StartDelay)
	}

	var store catalog.MetadataStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := catalog.NewPGStore(ctx, dsn)
		cancel()
		if err != nil {
			log.Printf("[Server] metadata store unavailable, continuing without: %v", err)
		} else {
			log.Printf("[Server] catalog metadata store connected")
			store = pg
		}
	}

	var seed []string
	if raw := os.Getenv("INVIDIOUS_INSTANCES"); raw != "" {
		for _, inst := range strings.Split(raw, ",") {
			if inst = strings.TrimSpace(inst); inst != "" {
				seed = append(seed, inst)
			}
		}
	}
	cat := catalog.New(catalog.Config{
		SongsDir:  songsDir,
		Instances: catalog.NewInstanceFinder(seed),
		Store:     store,
	})
	if len(seed) == 0 {
		// Pinned instances stay pinned; otherwise refresh from the
		// public registry every few hours.
		cat.StartRefresher()
	}

	registry := game.NewRegistry(game.SystemClock{}, timings)

	s := &Server{
		port:     port,
		songsDir: songsDir,
		core:     game.NewCore(registry, cat),
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
