package cli

import (
	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/state"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Mode  string
	Query string
	JSON  bool
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List currencies",
		Long: `List the currencies of a mode. Modes are A (crypto), B (fiat), ALL and FAVORITES.
Without --mode the last selected mode is used. Selecting a mode remembers it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Mode: A, B, ALL or FAVORITES")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Filter by name or symbol")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store := a.State()
	if opts.Mode != "" {
		mode, err := state.ParseMode(opts.Mode)
		if err != nil {
			return err
		}
		if err := store.SetMode(cmd.Context(), mode); err != nil {
			return err
		}
	}
	store.SetQuery(opts.Query)

	records := store.FilteredList()
	if opts.JSON {
		return outputJSON(cmd, records)
	}
	renderRecords(cmd.OutOrStdout(), records, store.Snapshot().Favorites)
	return nil
}
