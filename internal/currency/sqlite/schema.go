package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/artpar/coinshelf/internal/currency"
)

const table = "currencies"

// optionalColumns are added after table creation so older databases
// created with only the required columns pick them up.
var optionalColumns = []struct {
	name string
	decl string
}{
	{"code", "TEXT"},
	{"imageUrl", "TEXT"},
	{"price", "REAL"},
	{"change24h", "REAL"},
	{"marketCap", "REAL"},
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// EnsureSchema creates the currencies table and any missing optional columns.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return currency.ErrStoreClosed
	}
	return ensureSchema(ctx, s.db)
}

// RecreateSchema drops the currencies table and creates it again.
func (s *Store) RecreateSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return currency.ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return &currency.SchemaError{Op: "drop table", Err: err}
	}
	return ensureSchema(ctx, s.db)
}

func ensureSchema(ctx context.Context, db execer) error {
	create := `
		CREATE TABLE IF NOT EXISTS ` + table + ` (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			list TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, create); err != nil {
		return &currency.SchemaError{Op: "create table", Err: err}
	}

	existing, err := columns(ctx, db)
	if err != nil {
		return &currency.SchemaError{Op: "inspect columns", Err: err}
	}

	for _, col := range optionalColumns {
		if existing[strings.ToLower(col.name)] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.decl)
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isDuplicateColumn(err) {
			return &currency.SchemaError{Op: "add column " + col.name, Err: err}
		}
	}

	index := `CREATE INDEX IF NOT EXISTS idx_currencies_list_name ON ` + table + `(list, name, id)`
	if _, err := db.ExecContext(ctx, index); err != nil {
		return &currency.SchemaError{Op: "create index", Err: err}
	}

	return nil
}

// columns returns the lowercased column names of the currencies table.
func columns(ctx context.Context, db execer) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// isDuplicateColumn reports SQLite's error for adding an existing column.
// Another connection may add the column between inspection and ALTER.
func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
