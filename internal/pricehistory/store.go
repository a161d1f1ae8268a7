package pricehistory

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidEntry = errors.New("invalid price history entry")
	ErrStoreClosed  = errors.New("price history store is closed")
)

// Store defines the interface for price history storage operations.
type Store interface {
	// Add records a sample and returns its ID.
	Add(ctx context.Context, entry Entry) (string, error)

	// AddMany records samples in one transaction.
	AddMany(ctx context.Context, entries []Entry) error

	// List returns samples matching the options, newest first.
	List(ctx context.Context, opts QueryOptions) ([]Entry, error)

	// Count returns the number of samples matching the options.
	Count(ctx context.Context, opts QueryOptions) (int64, error)

	// Prune removes samples older than the cutoff and returns how many.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Clear removes all samples.
	Clear(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
