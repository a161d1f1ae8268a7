package currency

import "strings"

func normalize(s string) string {
	return strings.ToLower(s)
}

// Matches reports whether r matches a search query.
//
// An empty query matches everything. Otherwise the query matches when the
// name starts with it, when a word inside the name starts with it, or when
// the symbol starts with it. Comparison is case-insensitive.
func Matches(r Record, query string) bool {
	if query == "" {
		return true
	}
	q := normalize(query)
	name := normalize(r.Name)
	if strings.HasPrefix(name, q) {
		return true
	}
	if strings.Contains(name, " "+q) {
		return true
	}
	return strings.HasPrefix(normalize(r.Symbol), q)
}

// Filter returns the records matching query, preserving their order.
func Filter(records []Record, query string) []Record {
	if query == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if Matches(r, query) {
			out = append(out, r)
		}
	}
	return out
}
