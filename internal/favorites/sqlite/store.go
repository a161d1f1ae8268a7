package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/coinshelf/internal/favorites"
	_ "modernc.org/sqlite"
)

// Store implements favorites.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	owned  bool
	closed bool
}

// New creates a new SQLite-based favorites store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open favorites database: %w", err)
	}

	store := &Store{db: db, owned: true}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize favorites database: %w", err)
	}

	return store, nil
}

// NewWithDB creates a store using an existing database connection.
// This allows sharing a database file with the currency store.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize favorites tables: %w", err)
	}
	return store, nil
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, owned: true}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables and indexes.
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS favorites (
			currency_id TEXT PRIMARY KEY,
			added_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_favorites_added_at ON favorites(added_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load returns every favorited id.
func (s *Store) Load(ctx context.Context) (favorites.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return favorites.Set{}, favorites.ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, "SELECT currency_id FROM favorites")
	if err != nil {
		return favorites.Set{}, fmt.Errorf("failed to load favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return favorites.Set{}, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return favorites.Set{}, fmt.Errorf("failed to load favorites: %w", err)
	}

	return favorites.NewSet(ids...), nil
}

// Add marks a currency as favorite. Adding twice keeps one entry.
func (s *Store) Add(ctx context.Context, id string) error {
	if id == "" {
		return favorites.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return favorites.ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO favorites (currency_id, added_at) VALUES (?, ?)",
		id, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

// Remove clears the favorite mark. Removing an absent id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return favorites.ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM favorites WHERE currency_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	return nil
}

// Contains checks if a currency is a favorite.
func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, favorites.ErrStoreClosed
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM favorites WHERE currency_id = ?",
		id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}

	return count > 0, nil
}

// Clear removes all favorites.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return favorites.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM favorites"); err != nil {
		return fmt.Errorf("failed to clear favorites: %w", err)
	}

	return nil
}

// Count returns the number of favorites.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, favorites.ErrStoreClosed
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM favorites").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}

	return count, nil
}

// Close closes the store. A shared connection is left open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

var _ favorites.Store = (*Store)(nil)
