package components

import (
	"fmt"
	"strings"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/favorites"
	"github.com/artpar/coinshelf/internal/pricehistory"
	"github.com/artpar/coinshelf/internal/tui"
)

const (
	starWidth   = 2
	symbolWidth = 8
	priceWidth  = 16
	changeWidth = 9
)

// CurrencyList is a scrolling list of currency rows with a cursor.
type CurrencyList struct {
	items     []currency.Record
	favorites favorites.Set
	cursor    int
	offset    int
	width     int
	height    int
	styles    tui.Styles
}

// NewCurrencyList creates an empty list.
func NewCurrencyList(styles tui.Styles) *CurrencyList {
	return &CurrencyList{styles: styles}
}

// SetItems replaces the rows. The cursor stays on the same id when it is
// still present, otherwise it is clamped.
func (l *CurrencyList) SetItems(items []currency.Record) {
	var selected string
	if r, ok := l.Selected(); ok {
		selected = r.ID
	}

	l.items = items
	if i := IndexOf(currency.IDs(items), selected); selected != "" && i >= 0 {
		l.cursor = i
	} else {
		l.cursor = MoveCursor(l.cursor, 0, len(items))
	}
	l.offset = AdjustOffset(l.cursor, l.offset, l.height)
}

// SetFavorites sets the ids drawn with a star.
func (l *CurrencyList) SetFavorites(set favorites.Set) {
	l.favorites = set
}

// SetStyles changes the styles.
func (l *CurrencyList) SetStyles(styles tui.Styles) {
	l.styles = styles
}

// SetSize sets the drawing area.
func (l *CurrencyList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.offset = AdjustOffset(l.cursor, l.offset, l.height)
}

// Len returns the number of rows.
func (l *CurrencyList) Len() int {
	return len(l.items)
}

// Cursor returns the cursor index.
func (l *CurrencyList) Cursor() int {
	return l.cursor
}

// Offset returns the index of the first visible row.
func (l *CurrencyList) Offset() int {
	return l.offset
}

// Move shifts the cursor by delta rows.
func (l *CurrencyList) Move(delta int) {
	l.cursor = MoveCursor(l.cursor, delta, len(l.items))
	l.offset = AdjustOffset(l.cursor, l.offset, l.height)
}

// Top moves to the first row.
func (l *CurrencyList) Top() {
	l.Move(-len(l.items))
}

// Bottom moves to the last row.
func (l *CurrencyList) Bottom() {
	l.Move(len(l.items))
}

// PageSize is the number of rows a half-page jump moves.
func (l *CurrencyList) PageSize() int {
	if l.height < 2 {
		return 1
	}
	return l.height / 2
}

// Selected returns the record under the cursor.
func (l *CurrencyList) Selected() (currency.Record, bool) {
	if l.cursor < 0 || l.cursor >= len(l.items) {
		return currency.Record{}, false
	}
	return l.items[l.cursor], true
}

// View renders the visible rows.
func (l *CurrencyList) View() string {
	start, end := VisibleRange(l.offset, l.height, len(l.items))
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, l.renderRow(l.items[i], i == l.cursor))
	}
	return strings.Join(lines, "\n")
}

func (l *CurrencyList) renderRow(r currency.Record, selected bool) string {
	nameWidth := l.width - starWidth - symbolWidth - priceWidth - changeWidth - 4
	if nameWidth < 8 {
		nameWidth = 8
	}

	star := "  "
	if l.favorites.Contains(r.ID) {
		star = "* "
	}

	symbol := r.Symbol
	if r.Code != "" && r.Code != r.Symbol {
		symbol = r.Code
	}

	cells := []string{
		tui.PadRight(star, starWidth),
		tui.PadRight(symbol, symbolWidth),
		tui.PadRight(tui.Truncate(r.Name, nameWidth), nameWidth),
		tui.PadLeft(FormatPrice(r.Price), priceWidth),
		tui.PadLeft(FormatChange(r.Change24h), changeWidth),
	}

	if selected {
		return l.styles.Selected.Render(strings.Join(cells, " "))
	}

	if l.favorites.Contains(r.ID) {
		cells[0] = l.styles.Star.Render(cells[0])
	}
	switch {
	case r.Change24h == nil:
		cells[4] = l.styles.Dim.Render(cells[4])
	case *r.Change24h >= 0:
		cells[4] = l.styles.Up.Render(cells[4])
	default:
		cells[4] = l.styles.Down.Render(cells[4])
	}
	cells[1] = l.styles.Row.Render(cells[1])
	cells[2] = l.styles.Row.Render(cells[2])
	return strings.Join(cells, " ")
}

// FormatPrice renders an optional price, or "-" when unknown.
func FormatPrice(price *float64) string {
	if price == nil {
		return "-"
	}
	return pricehistory.FormatPrice(*price)
}

// FormatChange renders an optional 24h change as a signed percentage.
func FormatChange(change *float64) string {
	if change == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", *change)
}
