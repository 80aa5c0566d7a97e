package hashcache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS digests (
	path       TEXT    NOT NULL,
	algorithm  TEXT    NOT NULL,
	size       INTEGER NOT NULL,
	mtime_ns   INTEGER NOT NULL,
	digest     TEXT    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (path, algorithm)
);
`

// Cache remembers content digests keyed by path, size and modification time,
// so unchanged files are not re-hashed across runs.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates or opens the cache database at path.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+filepath.ToSlash(path)+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening hash cache: %w", err)
	}
	// Digests are written from many hashing workers; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging hash cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing hash cache schema: %w", err)
	}

	return &Cache{db: db, logger: logger, now: time.Now}, nil
}

// Lookup returns the stored digest when size and modification time still match.
// A hit marks the entry as used, so Prune keeps it.
func (c *Cache) Lookup(path string, size int64, modTime time.Time, algorithm string) (string, bool) {
	var digest string
	err := c.db.QueryRow(
		`UPDATE digests SET updated_at = ?
		 WHERE path = ? AND algorithm = ? AND size = ? AND mtime_ns = ?
		 RETURNING digest`,
		c.now().Unix(), path, algorithm, size, modTime.UnixNano(),
	).Scan(&digest)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("hash cache lookup failed", "path", path, "error", err)
		}
		return "", false
	}
	return digest, true
}

// Store records a digest. Errors are logged, never returned: the cache is an optimisation.
func (c *Cache) Store(path string, size int64, modTime time.Time, algorithm, digest string) {
	_, err := c.db.Exec(
		`INSERT INTO digests (path, algorithm, size, mtime_ns, digest, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (path, algorithm) DO UPDATE SET
			size = excluded.size, mtime_ns = excluded.mtime_ns,
			digest = excluded.digest, updated_at = excluded.updated_at`,
		path, algorithm, size, modTime.UnixNano(), digest, c.now().Unix(),
	)
	if err != nil {
		c.logger.Warn("hash cache store failed", "path", path, "error", err)
	}
}

// Prune deletes entries under root that were neither stored nor looked up
// since cutoff, and returns how many were removed. Entries outside root are
// left alone, so analyzing a subdirectory does not evict the rest of the tree.
func (c *Cache) Prune(root string, cutoff time.Time) (int64, error) {
	prefix := strings.TrimRight(root, `/\`) + string(filepath.Separator)
	res, err := c.db.Exec(
		`DELETE FROM digests
		 WHERE updated_at < ? AND (path = ? OR substr(path, 1, length(?)) = ?)`,
		cutoff.Unix(), root, prefix, prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning hash cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of cached digests.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM digests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting hash cache: %w", err)
	}
	return n, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
