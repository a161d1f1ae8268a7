package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/currency"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalog with the built-in sample data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.State().InsertMockData(ctx); err != nil {
				return fmt.Errorf("failed to insert sample data: %w", err)
			}

			crypto, err := a.Currencies().Count(ctx, currency.ListCrypto)
			if err != nil {
				return err
			}
			fiat, err := a.Currencies().Count(ctx, currency.ListFiat)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d crypto and %d fiat currencies\n", crypto, fiat)
			return nil
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every currency (favorites are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.State().ClearDatabase(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared currency database")
			return nil
		},
	}
}
