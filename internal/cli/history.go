package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/coinshelf/internal/app"
	"github.com/artpar/coinshelf/internal/pricehistory"
)

// maxConcurrentCharts bounds parallel chart downloads.
const maxConcurrentCharts = 4

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Days   int
	Remote bool
	JSON   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history ID...",
		Short: "Show recorded price history",
		Long: `Summarize the recorded prices of one or more currencies over the last days.
With --remote the market chart is downloaded and stored first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Days, "days", "d", 7, "Number of days to cover")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "Download the market chart first")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, ids []string, opts *HistoryOptions) error {
	if opts.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", opts.Days)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Remote {
		if err := downloadCharts(cmd, a, ids, opts.Days); err != nil {
			return err
		}
	}

	since := time.Now().Add(-time.Duration(opts.Days) * 24 * time.Hour)
	summaries := make([]pricehistory.Summary, 0, len(ids))
	for _, id := range ids {
		entries, err := a.History().List(cmd.Context(), pricehistory.QueryOptions{
			CurrencyID: id,
			After:      since,
		})
		if err != nil {
			return err
		}
		s := pricehistory.Summarize(entries)
		s.CurrencyID = id
		summaries = append(summaries, s)
	}

	if opts.JSON {
		return outputJSON(cmd, summaries)
	}

	out := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintln(out, renderSummary(s))
	}
	return nil
}

// downloadCharts fetches the charts of ids concurrently and stores them.
func downloadCharts(cmd *cobra.Command, a *app.App, ids []string, days int) error {
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(maxConcurrentCharts)

	for _, id := range ids {
		g.Go(func() error {
			points, err := a.Market().PriceHistory(ctx, id, days)
			if err != nil {
				return err
			}
			entries := make([]pricehistory.Entry, 0, len(points))
			for _, p := range points {
				entries = append(entries, pricehistory.Entry{
					CurrencyID: id,
					Timestamp:  p.Time,
					Price:      p.Price,
					Source:     pricehistory.SourceChart,
				})
			}
			if err := a.History().AddMany(ctx, entries); err != nil {
				return fmt.Errorf("failed to store chart for %s: %w", id, err)
			}
			a.Logger().Debug("stored price chart", "id", id, "points", len(entries))
			return nil
		})
	}
	return g.Wait()
}

func renderSummary(s pricehistory.Summary) string {
	title := headerStyle.Render(s.CurrencyID)
	if s.Samples == 0 {
		return title + "  " + mutedStyle.Render("no price history")
	}

	change := fmt.Sprintf("%+.2f%%", s.ChangePct)
	changeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	if s.ChangePct < 0 {
		changeStyle = changeStyle.Foreground(lipgloss.Color("196"))
	}

	lines := []string{
		fmt.Sprintf("%s  %s", title, changeStyle.Render(change)),
		fmt.Sprintf("  samples %d  from %s  to %s",
			s.Samples, s.From.Local().Format(time.DateTime), s.To.Local().Format(time.DateTime)),
		fmt.Sprintf("  first %s  last %s  min %s  max %s",
			pricehistory.FormatPrice(s.First), pricehistory.FormatPrice(s.Last),
			pricehistory.FormatPrice(s.Min), pricehistory.FormatPrice(s.Max)),
	}
	return strings.Join(lines, "\n")
}
