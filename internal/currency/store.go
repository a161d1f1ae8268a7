package currency

import (
	"context"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound       = errors.New("currency not found")
	ErrStoreClosed    = errors.New("currency store is closed")
	ErrInvalidListTag = errors.New("invalid list tag")
	ErrInvalidRecord  = errors.New("invalid currency record")

	// ErrSchema and ErrStorage classify SchemaError and StorageError for errors.Is.
	ErrSchema  = errors.New("currency schema error")
	ErrStorage = errors.New("currency storage error")
)

// SchemaError reports a failure to create or migrate the currencies table.
// The application cannot proceed without a schema.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// StorageError reports a read or write failure against an existing schema.
// Retrying the operation is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Repository defines currency persistence operations.
type Repository interface {
	// ClearAll deletes every row without dropping the table.
	ClearAll(ctx context.Context) error

	// InsertMany upserts records under tag as one all-or-nothing batch.
	InsertMany(ctx context.Context, tag ListTag, records []Record) error

	// GetByTag returns records with the given tag ordered by name, then id.
	GetByTag(ctx context.Context, tag ListTag) ([]Record, error)

	// GetCombined returns crypto and fiat records with the same ordering.
	GetCombined(ctx context.Context) ([]Record, error)

	// Get returns a single record by id.
	Get(ctx context.Context, id string) (Record, error)

	// Count returns the number of records with tag, or all records when tag is empty.
	Count(ctx context.Context, tag ListTag) (int64, error)

	// Close closes the repository.
	Close() error
}

// SchemaManager creates and migrates the currencies table.
type SchemaManager interface {
	// EnsureSchema creates missing tables and columns. It is idempotent.
	EnsureSchema(ctx context.Context) error

	// RecreateSchema drops and recreates the table, discarding all rows.
	RecreateSchema(ctx context.Context) error
}
