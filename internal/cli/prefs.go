package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/prefs"
)

// NewPruneCommand creates the prune command.
func NewPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old price history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			age := olderThan
			if !cmd.Flags().Changed("older-than") {
				age = a.Config().History.Retention
			}

			n, err := a.PruneHistoryOlderThan(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d history entries\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete entries older than this (default: history.retention)")
	return cmd
}

// NewThemeCommand creates the theme command.
func NewThemeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Show or set the browser theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{prefs.ThemeLight, prefs.ThemeDark, prefs.ThemeSystem},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				if err := a.Prefs().SetTheme(ctx, args[0]); err != nil {
					return err
				}
			}

			theme, err := a.Prefs().Theme(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		},
	}
}

// NewPrefsCommand creates the prefs command.
func NewPrefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect or reset saved preferences",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved preference namespaces",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				names, err := a.Prefs().Namespaces(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset [NAMESPACE...]",
			Short: "Delete saved preferences, all of them when no namespace is given",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				ctx := cmd.Context()
				names := args
				if len(names) == 0 {
					if names, err = a.Prefs().Namespaces(ctx); err != nil {
						return err
					}
				}

				for _, name := range names {
					if err := a.Prefs().Delete(ctx, name); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d preference namespaces\n", len(names))
				return nil
			},
		},
	)

	return cmd
}
