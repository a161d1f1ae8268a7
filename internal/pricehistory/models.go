package pricehistory

import (
	"time"

	"github.com/artpar/coinshelf/internal/currency"
)

// Source records where a price sample came from.
type Source string

const (
	SourceSeed   Source = "seed"
	SourceRemote Source = "remote"
	SourceChart  Source = "chart"
)

// Entry is one recorded price sample for a currency.
type Entry struct {
	ID         string    `json:"id"`
	CurrencyID string    `json:"currency_id"`
	Timestamp  time.Time `json:"timestamp"`
	Price      float64   `json:"price"`
	MarketCap  *float64  `json:"market_cap,omitempty"`
	Change24h  *float64  `json:"change_24h,omitempty"`
	Source     Source    `json:"source"`
}

// QueryOptions specifies filters and pagination for history queries.
type QueryOptions struct {
	CurrencyID string    // Filter by currency
	Source     Source    // Filter by source
	After      time.Time // Only entries after this time
	Before     time.Time // Only entries before this time

	Limit  int // Maximum number of results (0 = no limit)
	Offset int // Number of results to skip
}

// Summary describes the movement of a price series.
type Summary struct {
	CurrencyID string    `json:"currency_id"`
	Samples    int       `json:"samples"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	First      float64   `json:"first"`
	Last       float64   `json:"last"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	ChangePct  float64   `json:"change_pct"`
}

// EntriesFromRecords builds one entry per priced record, stamped with at.
// Records without a price are skipped.
func EntriesFromRecords(records []currency.Record, source Source, at time.Time) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if r.Price == nil {
			continue
		}
		entries = append(entries, Entry{
			CurrencyID: r.ID,
			Timestamp:  at,
			Price:      *r.Price,
			MarketCap:  r.MarketCap,
			Change24h:  r.Change24h,
			Source:     source,
		})
	}
	return entries
}
