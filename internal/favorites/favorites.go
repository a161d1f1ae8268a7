package favorites

import (
	"sort"

	"github.com/artpar/coinshelf/internal/currency"
)

// Set is an immutable set of favorited currency ids.
// The zero value is an empty set.
type Set struct {
	ids map[string]struct{}
}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{ids: m}
}

// Len returns the number of ids in the set.
func (s Set) Len() int {
	return len(s.ids)
}

// IDs returns the ids in ascending order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contains reports membership.
func (s Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Equal reports whether both sets hold the same ids.
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Toggle returns a copy of set with id removed if present, added otherwise.
// The input set is not modified.
func Toggle(set Set, id string) Set {
	next := make(map[string]struct{}, len(set.ids)+1)
	for k := range set.ids {
		next[k] = struct{}{}
	}
	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return Set{ids: next}
}

// IsFavorite reports whether id is in set.
func IsFavorite(set Set, id string) bool {
	return set.Contains(id)
}

// DeriveRecords returns the records whose id is in set, in the order of all.
// Favorited ids without a matching record are skipped.
func DeriveRecords(all []currency.Record, set Set) []currency.Record {
	out := make([]currency.Record, 0, set.Len())
	if set.Len() == 0 {
		return out
	}
	for _, r := range all {
		if set.Contains(r.ID) {
			out = append(out, r)
		}
	}
	return out
}
