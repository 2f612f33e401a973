package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS mirror (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mirror_expires ON mirror(expires_at);
`

// ErrInvalidTTL is returned by Save for a non-positive ttl
var ErrInvalidTTL = errors.New("mirror ttl must be positive")

// Mirror is a durable warm-start copy of view state. Every entry expires;
// nothing read from here is ever treated as authoritative.
type Mirror struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the sqlite mirror at path. Use ":memory:" in tests.
func Open(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}
	// Several views of one profile may share the file
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create mirror schema: %w", err)
	}
	return &Mirror{db: db, now: time.Now}, nil
}

// Close closes the database
func (m *Mirror) Close() error {
	return m.db.Close()
}

// Save stores value under key until now+ttl
func (m *Mirror) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode mirror value: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO mirror (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, data, m.now().Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save mirror entry: %w", err)
	}
	return nil
}

// Load decodes the entry for key into dst. It reports false when the key is
// missing or expired.
func (m *Mirror) Load(ctx context.Context, key string, dst interface{}) (bool, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM mirror WHERE key = ? AND expires_at > ?`,
		key, m.now().UnixNano()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load mirror entry: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode mirror entry %s: %w", key, err)
	}
	return true, nil
}

// Purge deletes expired entries and reports how many were removed
func (m *Mirror) Purge(ctx context.Context) (int, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM mirror WHERE expires_at <= ?`, m.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge mirror: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
