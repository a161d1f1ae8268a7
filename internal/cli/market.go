package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/pricehistory"
)

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Load the top crypto currencies from the market API",
		Long: `Fetch the top crypto currencies by market cap into the crypto list, record
their prices in the history and prune history older than the retention period.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 {
				limit = a.Config().Market.TopLimit
			}

			ctx := cmd.Context()
			start := time.Now()
			if err := a.State().SeedFromRemote(ctx, a.Market(), limit); err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}

			recorded, err := a.History().Count(ctx, pricehistory.QueryOptions{
				Source: pricehistory.SourceRemote,
				After:  start.Add(-time.Nanosecond),
			})
			if err != nil {
				return err
			}
			pruned, err := a.PruneHistory(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d currencies in %s\n", recorded, time.Since(start).Round(time.Millisecond))
			if pruned > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d old history entries\n", pruned)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of currencies to fetch (default: market.top_limit)")
	return cmd
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	var (
		asJSON bool
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the market API by name or symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			records, err := a.Market().Search(ctx, args[0])
			if err != nil {
				return err
			}

			if save && len(records) > 0 {
				if err := a.Currencies().InsertMany(ctx, currency.ListCrypto, records); err != nil {
					return fmt.Errorf("failed to save results: %w", err)
				}
			}

			if asJSON {
				return outputJSON(cmd, records)
			}
			renderRecords(cmd.OutOrStdout(), records, a.State().Snapshot().Favorites)
			if save && len(records) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d currencies to the crypto list\n", len(records))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Add the results to the crypto list")
	return cmd
}
