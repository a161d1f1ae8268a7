package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/artpar/coinshelf/internal/app"
	"github.com/artpar/coinshelf/internal/config"
	"github.com/artpar/coinshelf/internal/state"
	"github.com/artpar/coinshelf/internal/tui"
	"github.com/artpar/coinshelf/internal/tui/views"
)

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coinshelf",
		Short:         "Coinshelf - browse and track currencies",
		Long:          "Coinshelf keeps a local catalog of crypto and fiat currencies with favorites and price history.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./config.yaml or ~/.coinshelf/config.yaml)")
	flags.String("data-dir", "", "Data directory (default: ~/.coinshelf)")
	flags.String("db", "", `Database path, or ":memory:" (default: <data-dir>/coinshelf.db)`)
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")

	cmd.AddCommand(
		NewListCommand(),
		NewSeedCommand(),
		NewClearCommand(),
		NewFavCommand(),
		NewRefreshCommand(),
		NewSearchCommand(),
		NewHistoryCommand(),
		NewPruneCommand(),
		NewThemeCommand(),
		NewPrefsCommand(),
	)

	return cmd
}

// loadConfig resolves configuration for cmd, with its flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(config.Options{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
}

// openApp loads configuration and opens the application, logging to stderr.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	return app.Open(cmd.Context(), cfg, app.WithLogger(logger))
}

// runTUI starts the terminal browser. Logs go to a file in the data
// directory so they do not draw over the screen.
func runTUI(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logFile, err := openLogFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, app.WithLogger(app.NewLogger(cfg.Logging, logFile)))
	if err != nil {
		return err
	}
	defer a.Close()

	theme, err := a.Prefs().Theme(ctx)
	if err != nil {
		a.Logger().Warn("failed to load theme", "error", err)
	}

	browser := views.NewBrowser(ctx, a.State(),
		views.WithSource(a.Market(), cfg.Market.TopLimit),
		views.WithStyles(tui.StylesForTheme(theme)),
	)

	p := tea.NewProgram(browser, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := a.State().Subscribe(forward(ctx, p))
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error running TUI: %v\n", err)
		return err
	}
	return nil
}

// forward relays state snapshots to the program. Sends happen off the
// caller's goroutine since the store may be called from inside Update.
func forward(ctx context.Context, p *tea.Program) func(state.State) {
	return func(s state.State) {
		go func() {
			select {
			case <-ctx.Done():
			default:
				p.Send(views.StateMsg{State: s})
			}
		}()
	}
}

func openLogFile(dataDir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "coinshelf.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
