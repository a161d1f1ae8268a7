package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/favorites"
)

// NewFavCommand creates the fav command group.
func NewFavCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorite currencies",
	}
	cmd.AddCommand(newFavToggleCommand(), newFavListCommand())
	return cmd
}

func newFavToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Add or remove a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			added, err := a.State().ToggleFavorite(cmd.Context(), id)
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to favorites\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favorites\n", id)
			}
			return nil
		},
	}
}

// FavoriteList is the JSON shape of fav list.
type FavoriteList struct {
	Favorites []currency.Record `json:"favorites"`
	Missing   []string          `json:"missing"`
}

func newFavListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List favorites present in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.Currencies().GetCombined(cmd.Context())
			if err != nil {
				return err
			}
			set := a.State().Snapshot().Favorites
			result := FavoriteList{
				Favorites: favorites.DeriveRecords(all, set),
				Missing:   missingIDs(all, set),
			}

			if asJSON {
				return outputJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			renderRecords(out, result.Favorites, set)
			if n := len(result.Missing); n > 0 {
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d favorite(s) not in the catalog: %v", n, result.Missing)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// missingIDs returns the favorites with no record in all.
func missingIDs(all []currency.Record, set favorites.Set) []string {
	present := make(map[string]bool, len(all))
	for _, r := range all {
		present[r.ID] = true
	}
	missing := []string{}
	for _, id := range set.IDs() {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
