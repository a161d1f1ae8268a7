package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/favorites"
	"github.com/artpar/coinshelf/internal/tui/components"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// renderRecords prints records as a table. Favorites are starred.
func renderRecords(w io.Writer, records []currency.Record, favs favorites.Set) {
	if len(records) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No currencies."))
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		star := ""
		if favs.Contains(r.ID) {
			star = "*"
		}
		rows = append(rows, []string{
			star,
			r.ID,
			r.Symbol,
			r.Name,
			components.FormatPrice(r.Price),
			components.FormatChange(r.Change24h),
			string(r.List),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("", "ID", "SYMBOL", "NAME", "PRICE", "24H", "LIST").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 4 || col == 5 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	fmt.Fprintln(w, t.Render())
}
