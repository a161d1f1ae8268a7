package state

import (
	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/favorites"
)

// State is an immutable snapshot of the view.
type State struct {
	Mode        Mode
	Query       string
	Items       []currency.Record
	Loading     bool
	IsSearching bool
	Favorites   favorites.Set
	Err         error
	Version     uint64

	// superset is the records of the last successful load. Favorites mode
	// derives its items from it.
	superset []currency.Record

	// itemsMode is the mode Items were loaded for.
	itemsMode Mode

	// epoch advances whenever the table is about to change or has changed.
	// Load results started in an earlier epoch are dropped.
	epoch uint64
}

// Filtered returns the items matching the query, in item order.
func (s State) Filtered() []currency.Record {
	return currency.Filter(s.Items, s.Query)
}

// Loaded reports whether any load has completed.
func (s State) Loaded() bool {
	return s.superset != nil
}

// Action is a state transition. The set of actions is closed.
type Action interface {
	isAction()
}

// ModeSelected switches the active mode. Items are kept until the load for
// the new mode finishes.
type ModeSelected struct{ Mode Mode }

// QueryChanged replaces the search query.
type QueryChanged struct{ Query string }

// LoadStarted marks the store as loading.
type LoadStarted struct{}

// MutationStarted marks the store as loading and starts a new epoch.
type MutationStarted struct{}

// DataChanged starts a new epoch after the table was written.
type DataChanged struct{}

// LoadSucceeded delivers records loaded for Mode in Epoch. For
// ModeFavorites the records are the superset the favorites are derived from.
type LoadSucceeded struct {
	Mode    Mode
	Epoch   uint64
	Records []currency.Record
}

// LoadFailed records a failed load for Mode in Epoch. Items are kept and
// the mode they were loaded for is restored.
type LoadFailed struct {
	Mode  Mode
	Epoch uint64
	Err   error
}

// FavoritesChanged replaces the favorite set.
type FavoritesChanged struct{ Favorites favorites.Set }

// ItemsCleared empties the items after the table was cleared.
type ItemsCleared struct{}

func (ModeSelected) isAction()     {}
func (QueryChanged) isAction()     {}
func (LoadStarted) isAction()      {}
func (MutationStarted) isAction()  {}
func (DataChanged) isAction()      {}
func (LoadSucceeded) isAction()    {}
func (LoadFailed) isAction()       {}
func (FavoritesChanged) isAction() {}
func (ItemsCleared) isAction()     {}

// Reduce applies a to s and returns the next state. Results for a mode other
// than the active one, or from an earlier epoch, are dropped.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ModeSelected:
		s.Mode = a.Mode
	case QueryChanged:
		s.Query = a.Query
		s.IsSearching = a.Query != ""
	case LoadStarted:
		s.Loading = true
	case MutationStarted:
		s.Loading = true
		s.epoch++
	case DataChanged:
		s.epoch++
	case LoadSucceeded:
		if a.Mode != s.Mode || a.Epoch != s.epoch {
			return s
		}
		records := a.Records
		if records == nil {
			records = []currency.Record{}
		}
		s.superset = records
		s.itemsMode = s.Mode
		if s.Mode == ModeFavorites {
			s.Items = favorites.DeriveRecords(records, s.Favorites)
		} else {
			s.Items = records
		}
		s.Loading = false
		s.Err = nil
	case LoadFailed:
		if a.Mode != s.Mode || a.Epoch != s.epoch {
			return s
		}
		if s.itemsMode != "" {
			s.Mode = s.itemsMode
		}
		s.Loading = false
		s.Err = a.Err
	case FavoritesChanged:
		s.Favorites = a.Favorites
		if s.Mode == ModeFavorites && s.superset != nil {
			s.Items = favorites.DeriveRecords(s.superset, s.Favorites)
		}
	case ItemsCleared:
		s.Items = []currency.Record{}
		s.superset = []currency.Record{}
		s.itemsMode = s.Mode
		s.epoch++
		s.Loading = false
		s.Err = nil
	default:
		return s
	}
	s.Version++
	return s
}
