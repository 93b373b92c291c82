// Package cache stores compiled containers in SQLite, keyed by the content
// hash of their source, so unchanged sources are not recompiled.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the source has no cached container.
var ErrNotFound = errors.New("cache entry not found")

// encoderVersion is mixed into every key. Bump it whenever the encoder's
// output for the same source changes.
const encoderVersion = "bcx-1"

// Cache is a content-addressed build cache.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Entry describes one cached build.
type Entry struct {
	Key       string
	Size      int
	CreatedAt time.Time
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS builds (
		key TEXT PRIMARY KEY,
		container BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the database path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Key returns the cache key for source.
func Key(source []byte) string {
	h := sha256.New()
	h.Write([]byte(encoderVersion))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached container for source, or ErrNotFound.
func (c *Cache) Get(source []byte) ([]byte, error) {
	var container []byte
	err := c.db.QueryRow("SELECT container FROM builds WHERE key = ?", Key(source)).Scan(&container)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying build: %w", err)
	}
	return container, nil
}

// Put stores the container compiled from source, replacing any previous
// entry.
func (c *Cache) Put(source, container []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO builds (key, container, created_at) VALUES (?, ?, ?)",
		Key(source), container, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving build: %w", err)
	}
	return nil
}

// Entries lists cached builds, newest first.
func (c *Cache) Entries() ([]Entry, error) {
	rows, err := c.db.Query("SELECT key, length(container), created_at FROM builds ORDER BY created_at DESC, key")
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.Key, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning build: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every cached build.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM builds"); err != nil {
		return fmt.Errorf("clearing builds: %w", err)
	}
	return nil
}
