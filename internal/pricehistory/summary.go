package pricehistory

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summarize computes the range and change of a series. Entries may be in any
// order; they are sorted by timestamp. An empty series gives a zero Summary.
func Summarize(entries []Entry) Summary {
	if len(entries) == 0 {
		return Summary{}
	}

	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	first := decimal.NewFromFloat(sorted[0].Price)
	last := decimal.NewFromFloat(sorted[len(sorted)-1].Price)
	lo, hi := first, first
	for _, e := range sorted[1:] {
		p := decimal.NewFromFloat(e.Price)
		lo = decimal.Min(lo, p)
		hi = decimal.Max(hi, p)
	}

	s := Summary{
		CurrencyID: sorted[0].CurrencyID,
		Samples:    len(sorted),
		From:       sorted[0].Timestamp,
		To:         sorted[len(sorted)-1].Timestamp,
		First:      first.InexactFloat64(),
		Last:       last.InexactFloat64(),
		Min:        lo.InexactFloat64(),
		Max:        hi.InexactFloat64(),
	}
	s.ChangePct = ChangePct(first, last).InexactFloat64()
	return s
}

// ChangePct returns (to-from)/from as a percentage rounded to 4 places.
// A zero starting price yields zero.
func ChangePct(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(decimal.NewFromInt(100)).Round(4)
}

// FormatPrice renders a price with precision suited to its magnitude.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	switch abs := d.Abs(); {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return d.StringFixed(2)
	case abs.GreaterThanOrEqual(decimal.RequireFromString("0.01")):
		return d.StringFixed(4)
	default:
		return d.StringFixed(8)
	}
}
