package adapters

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	ports "github.com/ZanzyTHEbar/kvtrace/kvtrace/store/ports"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// LibSQLStore implements Store on an embedded libSQL database. Counters and
// plain values share kv_entries; lists are rows in kv_lists ordered by seq.
// Expiry is checked on read, there is no background sweeper.
type LibSQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLibSQLStore opens (creating if needed) the database file at path and
// brings its schema up to date.
func OpenLibSQLStore(ctx context.Context, path string) (*LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory for %s: %w", path, err)
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach libsql database %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return NewLibSQLStore(db), nil
}

// NewLibSQLStore wraps an already migrated database handle.
func NewLibSQLStore(db *sql.DB) *LibSQLStore {
	return &LibSQLStore{db: db, now: time.Now}
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// Incr reads, bumps and writes the counter inside one transaction.
func (s *LibSQLStore) Incr(ctx context.Context, key string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int64
	raw, ok, err := s.getValue(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		n, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
	}
	n++

	keepExpiry := 0
	if ok {
		keepExpiry = 1
	}

	// A live counter keeps its expiry; an expired or missing one starts fresh.
	query := `
		INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, NULL)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = CASE WHEN ? = 1 THEN kv_entries.expires_at ELSE NULL END
	`
	if _, err := tx.ExecContext(ctx, query, key, []byte(strconv.FormatInt(n, 10)), keepExpiry); err != nil {
		return 0, fmt.Errorf("failed to write counter %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit counter %s: %w", key, err)
	}
	return n, nil
}

// RPush appends one row to the list at key.
func (s *LibSQLStore) RPush(ctx context.Context, key string, value string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO kv_lists (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return nil
}

// LRange loads the list in insertion order and slices it Redis-style.
func (s *LibSQLStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM kv_lists WHERE key = ? ORDER BY seq`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query list %s: %w", key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan list %s: %w", key, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating list %s: %w", key, err)
	}

	lo, hi, ok := clampRange(int64(len(values)), start, stop)
	if !ok {
		return []string{}, nil
	}
	return values[lo : hi+1], nil
}

// Get reads a live value.
func (s *LibSQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.getValue(ctx, s.db, key)
}

// Set stores value without expiry.
func (s *LibSQLStore) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, sql.NullInt64{})
}

// SetEX stores value with an absolute expiry derived from ttl.
func (s *LibSQLStore) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("setex %s: invalid ttl %s", key, ttl)
	}
	expires := sql.NullInt64{Int64: s.now().Add(ttl).UnixNano(), Valid: true}
	return s.put(ctx, key, value, expires)
}

// FlushAll empties both tables.
func (s *LibSQLStore) FlushAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM kv_entries`, `DELETE FROM kv_lists`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (s *LibSQLStore) Close() error {
	return s.db.Close()
}

func (s *LibSQLStore) put(ctx context.Context, key string, value []byte, expires sql.NullInt64) error {
	query := `
		INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, expires); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *LibSQLStore) getValue(ctx context.Context, q queryer, key string) ([]byte, bool, error) {
	var (
		value   []byte
		expires sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT value, expires_at FROM kv_entries WHERE key = ?`, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if expires.Valid && s.now().UnixNano() >= expires.Int64 {
		return nil, false, nil
	}
	return value, true, nil
}

// Ensure LibSQLStore implements the Store interface.
var _ ports.Store = (*LibSQLStore)(nil)
