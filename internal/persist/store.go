// Package persist stores avatar snapshots in SQLite.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"mmo-avatar/internal/game"
)

// ErrNotFound is returned for an avatar that was never saved.
var ErrNotFound = errors.New("persist: avatar not found")

// Summary is the listing row of a saved avatar.
type Summary struct {
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	Gold      int64     `json:"gold"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists avatar snapshots. The snapshot itself is kept as JSON; a
// few columns are lifted out for listing.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

var _ game.Store = (*Store)(nil)

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; sqlite serializes them anyway
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Named("persist").Info("store opened", zap.String("path", path))
	return &Store{db: db, log: log.Named("persist")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the saved snapshot for name, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (game.AvatarSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return game.AvatarSnapshot{}, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM avatars WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return game.AvatarSnapshot{}, ErrNotFound
	}
	if err != nil {
		return game.AvatarSnapshot{}, fmt.Errorf("get avatar %q: %w", name, err)
	}
	var snap game.AvatarSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return game.AvatarSnapshot{}, fmt.Errorf("decode avatar %q: %w", name, err)
	}
	return snap, nil
}

// Load implements game.Store.
func (s *Store) Load(ctx context.Context, name string) (game.AvatarSnapshot, bool, error) {
	snap, err := s.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return game.AvatarSnapshot{}, false, nil
	}
	if err != nil {
		return game.AvatarSnapshot{}, false, err
	}
	return snap, true, nil
}

// Save inserts or replaces a snapshot.
func (s *Store) Save(ctx context.Context, snap game.AvatarSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Name == "" {
		return fmt.Errorf("avatar name is required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode avatar %q: %w", snap.Name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO avatars (name, level, gold, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   level = excluded.level,
		   gold = excluded.gold,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		snap.Name, snap.Level, snap.Gold, string(data), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save avatar %q: %w", snap.Name, err)
	}
	s.log.Debug("avatar saved", zap.String("avatar", snap.Name), zap.Int("bytes", len(data)))
	return nil
}

// Delete removes a saved avatar. Deleting an unknown name returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM avatars WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete avatar %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns saved avatars ordered by level, highest first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, level, gold, updated_at FROM avatars ORDER BY level DESC, name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var updated int64
		if err := rows.Scan(&sum.Name, &sum.Level, &sum.Gold, &updated); err != nil {
			return nil, fmt.Errorf("scan avatar: %w", err)
		}
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	return out, nil
}
