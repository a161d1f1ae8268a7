package favorites

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrStoreClosed = errors.New("favorites store is closed")
	ErrInvalidID   = errors.New("invalid currency id")
)

// Store defines the interface for favorites persistence.
// Favorites are kept apart from the currency table, so clearing currencies
// leaves them intact.
type Store interface {
	// Load returns every favorited id as a set.
	Load(ctx context.Context) (Set, error)

	// Add marks a currency as favorite.
	Add(ctx context.Context, id string) error

	// Remove clears the favorite mark from a currency.
	Remove(ctx context.Context, id string) error

	// Contains checks if a currency is a favorite.
	Contains(ctx context.Context, id string) (bool, error)

	// Clear removes all favorites.
	Clear(ctx context.Context) error

	// Count returns the number of favorites.
	Count(ctx context.Context) (int64, error)

	// Close closes the store.
	Close() error
}
