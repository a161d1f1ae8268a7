package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/artpar/coinshelf/internal/currency"
	_ "modernc.org/sqlite"
)

// Store implements currency.Repository and currency.SchemaManager using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	owned  bool
	closed bool
}

// Open opens a SQLite database file with WAL journaling and a busy timeout.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database. The pool is pinned to a
// single connection because every :memory: connection is a separate database.
func OpenInMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New creates a new SQLite-based currency store.
func New(dbPath string) (*Store, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, owned: true}
	if err := ensureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize currency database: %w", err)
	}

	return store, nil
}

// NewWithDB creates a store using an existing database connection.
// The caller keeps ownership of db; Close does not close it.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := ensureSchema(context.Background(), db); err != nil {
		return nil, fmt.Errorf("failed to initialize currency tables: %w", err)
	}
	return store, nil
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, owned: true}
	if err := ensureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// DB returns the underlying connection so other stores can share the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ClearAll deletes every currency row.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return currency.ErrStoreClosed
	}
	if err := ensureSchema(ctx, s.db); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return &currency.StorageError{Op: "clear all", Err: err}
	}
	return nil
}

// InsertMany upserts records tagged with tag inside a single transaction.
func (s *Store) InsertMany(ctx context.Context, tag currency.ListTag, records []currency.Record) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", currency.ErrInvalidListTag, tag)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return currency.ErrStoreClosed
	}
	if err := ensureSchema(ctx, s.db); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &currency.StorageError{Op: "begin insert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO `+table+`
		(id, name, symbol, code, imageUrl, price, change24h, marketCap, list)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &currency.StorageError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Name, r.Symbol, nullString(r.Code), nullString(r.ImageURL),
			nullFloat(r.Price), nullFloat(r.Change24h), nullFloat(r.MarketCap),
			string(tag),
		)
		if err != nil {
			return &currency.StorageError{Op: "insert " + r.ID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &currency.StorageError{Op: "commit insert", Err: err}
	}
	return nil
}

// GetByTag returns records with tag ordered by name, then id.
func (s *Store) GetByTag(ctx context.Context, tag currency.ListTag) ([]currency.Record, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", currency.ErrInvalidListTag, tag)
	}
	return s.query(ctx, "get by tag", selectColumns+" WHERE list = ? ORDER BY name ASC, id ASC", string(tag))
}

// GetCombined returns crypto and fiat records ordered by name, then id.
func (s *Store) GetCombined(ctx context.Context) ([]currency.Record, error) {
	return s.query(ctx, "get combined",
		selectColumns+" WHERE list IN (?, ?) ORDER BY name ASC, id ASC",
		string(currency.ListCrypto), string(currency.ListFiat),
	)
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (currency.Record, error) {
	records, err := s.query(ctx, "get", selectColumns+" WHERE id = ?", id)
	if err != nil {
		return currency.Record{}, err
	}
	if len(records) == 0 {
		return currency.Record{}, fmt.Errorf("%w: %s", currency.ErrNotFound, id)
	}
	return records[0], nil
}

// Count returns the number of records with tag, or of all records if tag is empty.
func (s *Store) Count(ctx context.Context, tag currency.ListTag) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, currency.ErrStoreClosed
	}
	if err := ensureSchema(ctx, s.db); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM " + table
	var args []any
	if tag != "" {
		query += " WHERE list = ?"
		args = append(args, string(tag))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &currency.StorageError{Op: "count", Err: err}
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

const selectColumns = `SELECT id, name, symbol, code, imageUrl, price, change24h, marketCap, list FROM ` + table

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]currency.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, currency.ErrStoreClosed
	}
	if err := ensureSchema(ctx, s.db); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &currency.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	records := []currency.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &currency.StorageError{Op: op, Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &currency.StorageError{Op: op, Err: err}
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (currency.Record, error) {
	var (
		r                        currency.Record
		code, imageURL           sql.NullString
		price, change, marketCap sql.NullFloat64
		list                     string
	)
	err := rows.Scan(&r.ID, &r.Name, &r.Symbol, &code, &imageURL, &price, &change, &marketCap, &list)
	if err != nil {
		return currency.Record{}, err
	}

	r.Code = code.String
	r.ImageURL = imageURL.String
	r.Price = floatPtr(price)
	r.Change24h = floatPtr(change)
	r.MarketCap = floatPtr(marketCap)
	r.List = currency.ListTag(list)
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

var (
	_ currency.Repository    = (*Store)(nil)
	_ currency.SchemaManager = (*Store)(nil)
)
