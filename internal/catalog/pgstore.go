package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS song_metadata (
	id         text PRIMARY KEY,
	title      text NOT NULL,
	author     text NOT NULL,
	fetched_at timestamptz NOT NULL DEFAULT now()
)`

// PGStore is the Postgres-backed metadata cache. It only caches
// catalog metadata; game and score state stay in memory on purpose.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects, verifies the connection and ensures the
// schema exists.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging metadata store: %w", err)
	}
	if _, err := pool.Exec(ctx, createMetadataTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating song_metadata table: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Metadata, bool, error) {
	var meta Metadata
	meta.ID = id
	err := s.pool.QueryRow(ctx,
		`SELECT title, author FROM song_metadata WHERE id = $1`, id,
	).Scan(&meta.Title, &meta.Author)
	if errors.Is(err, pgx.ErrNoRows) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	return meta, true, nil
}

func (s *PGStore) Put(ctx context.Context, meta Metadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO song_metadata (id, title, author) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, author = EXCLUDED.author`,
		meta.ID, meta.Title, meta.Author,
	)
	return err
}

func (s *PGStore) Close() {
	s.pool.Close()
}
