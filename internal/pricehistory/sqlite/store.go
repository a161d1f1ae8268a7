package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/coinshelf/internal/currency/sqlite"
	"github.com/artpar/coinshelf/internal/pricehistory"
	"github.com/google/uuid"
)

// Store implements pricehistory.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	owned  bool
	closed bool
}

// New creates a new SQLite-based price history store.
func New(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, owned: true}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// NewWithDB creates a store using an existing database connection.
// The caller keeps ownership of db.
func NewWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize price history tables: %w", err)
	}
	return store, nil
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := sqlite.OpenInMemory()
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, owned: true}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS price_history (
			id TEXT PRIMARY KEY,
			currency_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			price REAL NOT NULL,
			market_cap REAL,
			change_24h REAL,
			source TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_price_history_currency ON price_history(currency_id, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_price_history_timestamp ON price_history(timestamp DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Add records a sample and returns its ID.
func (s *Store) Add(ctx context.Context, entry pricehistory.Entry) (string, error) {
	if err := validate(entry); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", pricehistory.ErrStoreClosed
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if _, err := s.db.ExecContext(ctx, insertSQL, insertArgs(entry)...); err != nil {
		return "", fmt.Errorf("failed to insert price sample: %w", err)
	}

	return entry.ID, nil
}

// AddMany records samples in one transaction. Either all are stored or none.
func (s *Store) AddMany(ctx context.Context, entries []pricehistory.Entry) error {
	for _, e := range entries {
		if err := validate(e); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pricehistory.ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, insertArgs(e)...); err != nil {
			return fmt.Errorf("failed to insert price sample for %s: %w", e.CurrencyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price samples: %w", err)
	}
	return nil
}

// List retrieves samples matching the query options, newest first.
func (s *Store) List(ctx context.Context, opts pricehistory.QueryOptions) ([]pricehistory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, pricehistory.ErrStoreClosed
	}

	query, args := buildListQuery(opts, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	entries := []pricehistory.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price sample: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the number of samples matching the query options.
func (s *Store) Count(ctx context.Context, opts pricehistory.QueryOptions) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, pricehistory.ErrStoreClosed
	}

	query, args := buildListQuery(opts, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}

	return count, nil
}

// Prune removes samples older than the cutoff.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, pricehistory.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM price_history WHERE timestamp < ?", olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// Clear removes all samples.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pricehistory.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM price_history"); err != nil {
		return fmt.Errorf("failed to clear price history: %w", err)
	}

	return nil
}

// Close closes the store. A shared database is left open.
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

const insertSQL = `
	INSERT INTO price_history (id, currency_id, timestamp, price, market_cap, change_24h, source)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

func insertArgs(e pricehistory.Entry) []interface{} {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	source := e.Source
	if source == "" {
		source = pricehistory.SourceRemote
	}
	return []interface{}{
		e.ID, e.CurrencyID, ts.UnixNano(), e.Price,
		nullFloat(e.MarketCap), nullFloat(e.Change24h), string(source),
	}
}

func validate(e pricehistory.Entry) error {
	if e.CurrencyID == "" {
		return fmt.Errorf("%w: missing currency id", pricehistory.ErrInvalidEntry)
	}
	return nil
}

func buildListQuery(opts pricehistory.QueryOptions, countOnly bool) (string, []interface{}) {
	var query string
	if countOnly {
		query = "SELECT COUNT(*) FROM price_history WHERE 1=1"
	} else {
		query = `
			SELECT id, currency_id, timestamp, price, market_cap, change_24h, source
			FROM price_history WHERE 1=1
		`
	}

	var args []interface{}

	if opts.CurrencyID != "" {
		query += " AND currency_id = ?"
		args = append(args, opts.CurrencyID)
	}

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, string(opts.Source))
	}

	if !opts.After.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, opts.After.UnixNano())
	}

	if !opts.Before.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, opts.Before.UnixNano())
	}

	if !countOnly {
		query += " ORDER BY timestamp DESC, id ASC"

		// SQLite only accepts OFFSET after LIMIT; -1 means unbounded.
		if opts.Limit > 0 || opts.Offset > 0 {
			limit := opts.Limit
			if limit <= 0 {
				limit = -1
			}
			query += " LIMIT ?"
			args = append(args, limit)
		}

		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	return query, args
}

func scanEntry(rows *sql.Rows) (pricehistory.Entry, error) {
	var (
		entry     pricehistory.Entry
		ts        int64
		marketCap sql.NullFloat64
		change    sql.NullFloat64
		source    string
	)

	err := rows.Scan(&entry.ID, &entry.CurrencyID, &ts, &entry.Price, &marketCap, &change, &source)
	if err != nil {
		return pricehistory.Entry{}, err
	}

	entry.Timestamp = time.Unix(0, ts)
	entry.Source = pricehistory.Source(source)
	if marketCap.Valid {
		v := marketCap.Float64
		entry.MarketCap = &v
	}
	if change.Valid {
		v := change.Float64
		entry.Change24h = &v
	}

	return entry, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

var _ pricehistory.Store = (*Store)(nil)
