package currency

import (
	"fmt"
	"strings"
)

// ListTag partitions the currency table into logical catalogs.
type ListTag string

const (
	// ListCrypto tags cryptocurrency records.
	ListCrypto ListTag = "A"
	// ListFiat tags fiat currency records.
	ListFiat ListTag = "B"
)

// Tags returns every known list tag in catalog order.
func Tags() []ListTag {
	return []ListTag{ListCrypto, ListFiat}
}

// Valid reports whether t is a known list tag.
func (t ListTag) Valid() bool {
	return t == ListCrypto || t == ListFiat
}

// String returns the tag as stored.
func (t ListTag) String() string {
	return string(t)
}

// ParseListTag parses a tag, accepting either case.
func ParseListTag(s string) (ListTag, error) {
	t := ListTag(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidListTag, s)
	}
	return t, nil
}

// Record is a single currency listing.
type Record struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Symbol    string   `json:"symbol" yaml:"symbol"`
	Code      string   `json:"code,omitempty" yaml:"code,omitempty"`
	ImageURL  string   `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Price     *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Change24h *float64 `json:"change24h,omitempty" yaml:"change24h,omitempty"`
	MarketCap *float64 `json:"marketCap,omitempty" yaml:"marketCap,omitempty"`
	List      ListTag  `json:"list,omitempty" yaml:"list,omitempty"`
}

// Validate checks the fields required by the schema.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	case r.Name == "":
		return fmt.Errorf("%w: %s has empty name", ErrInvalidRecord, r.ID)
	case r.Symbol == "":
		return fmt.Errorf("%w: %s has empty symbol", ErrInvalidRecord, r.ID)
	}
	return nil
}

// Float returns a pointer to v, for building records with optional numerics.
func Float(v float64) *float64 {
	return &v
}

// IDs returns the ids of records in order.
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
