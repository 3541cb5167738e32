// Package store caches checkouts of remote hook repositories, indexed by a
// SQLite database so each repo@rev is fetched only once.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/codysoyland/precommit/pkg/git"
)

const (
	// HomeEnv overrides the cache location
	HomeEnv = "PRECOMMIT_HOME"

	dbFile = "db.db"

	schema = `CREATE TABLE IF NOT EXISTS repos (
	repo TEXT NOT NULL,
	ref TEXT NOT NULL,
	path TEXT NOT NULL,
	PRIMARY KEY (repo, ref)
)`
)

// CloneFunc fetches rev of url into dest
type CloneFunc func(ctx context.Context, url, rev, dest string) error

// Entry is one cached checkout
type Entry struct {
	Repo string
	Ref  string
	Path string
}

// Store is the on-disk repository cache
type Store struct {
	dir    string
	db     *sql.DB
	clone  CloneFunc
	logger *zap.Logger
	mu     sync.Mutex // serializes clones so one repo@rev is fetched once
}

// Option configures a Store
type Option func(*Store)

// WithCloneFunc replaces the git clone used to populate the cache
func WithCloneFunc(fn CloneFunc) Option {
	return func(s *Store) {
		s.clone = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// DefaultDir returns the cache directory: $PRECOMMIT_HOME, else
// $XDG_CACHE_HOME/precommit, else ~/.cache/precommit
func DefaultDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "precommit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(home, ".cache", "precommit"), nil
}

// Open opens (creating when needed) the cache rooted at dir
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}

	s := &Store{
		dir:    dir,
		db:     db,
		clone:  git.Clone,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the cache root
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Repo returns the checkout of url at rev, cloning it on first use
func (s *Store) Repo(ctx context.Context, url, rev string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.lookup(ctx, url, rev)
	if err != nil {
		return "", err
	}
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			s.logger.Debug("Using cached repository", zap.String("repo", url), zap.String("rev", rev), zap.String("path", path))
			return path, nil
		}
		s.logger.Debug("Cached repository missing on disk, re-cloning", zap.String("path", path))
	}

	dest := filepath.Join(s.dir, "repo"+uuid.New().String())
	s.logger.Info("Initializing environment", zap.String("repo", url), zap.String("rev", rev))
	if err := s.clone(ctx, url, rev, dest); err != nil {
		_ = os.RemoveAll(dest)
		return "", fmt.Errorf("failed to clone %s@%s: %w", url, rev, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO repos (repo, ref, path) VALUES (?, ?, ?)`,
		url, rev, dest,
	); err != nil {
		_ = os.RemoveAll(dest)
		return "", fmt.Errorf("failed to record %s@%s: %w", url, rev, err)
	}
	return dest, nil
}

func (s *Store) lookup(ctx context.Context, url, rev string) (string, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT path FROM repos WHERE repo = ? AND ref = ?`, url, rev,
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query cache: %w", err)
	}
	return path, nil
}

// List returns every cached checkout
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT repo, ref, path FROM repos ORDER BY repo, ref`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Repo, &e.Ref, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clean removes the whole cache directory. The store is closed and must not
// be used afterwards.
func (s *Store) Clean() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.dir, err)
	}
	return nil
}
