// Package app wires the stores, the market client and the state store
// together from a configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/coinshelf/internal/config"
	currencysqlite "github.com/artpar/coinshelf/internal/currency/sqlite"
	favsqlite "github.com/artpar/coinshelf/internal/favorites/sqlite"
	"github.com/artpar/coinshelf/internal/marketdata"
	"github.com/artpar/coinshelf/internal/prefs"
	historysqlite "github.com/artpar/coinshelf/internal/pricehistory/sqlite"
	"github.com/artpar/coinshelf/internal/state"
)

// MemoryDatabase as database path keeps everything in memory.
const MemoryDatabase = ":memory:"

// App is the main application container with dependency injection.
type App struct {
	config config.Config
	logger *slog.Logger

	db         *sql.DB
	currencies *currencysqlite.Store
	favorites  *favsqlite.Store
	history    *historysqlite.Store
	prefs      *prefs.Store
	market     *marketdata.Client
	state      *state.Store

	marketOpts []marketdata.Option
}

// Option is a function that configures the App.
type Option func(*App)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMarketOptions appends options for the market data client.
func WithMarketOptions(opts ...marketdata.Option) Option {
	return func(a *App) {
		a.marketOpts = append(a.marketOpts, opts...)
	}
}

// Open creates the data directory, opens the database, builds every
// component and initializes the state store. A schema failure is returned as
// *currency.SchemaError.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.openStores(); err != nil {
		a.Close()
		return nil, err
	}

	a.market = marketdata.NewClient(append([]marketdata.Option{
		marketdata.WithBaseURL(cfg.Market.BaseURL),
		marketdata.WithTimeout(cfg.Market.Timeout),
		marketdata.WithCacheTTL(cfg.Market.CacheTTL),
		marketdata.WithVsCurrency(cfg.Market.VsCurrency),
		marketdata.WithLogger(a.logger.With("component", "market")),
	}, a.marketOpts...)...)

	a.state = state.New(a.currencies, a.currencies, a.favorites,
		state.WithPreferences(a.prefs),
		state.WithRecorder(a.history),
		state.WithLogger(a.logger.With("component", "state")),
	)

	if err := a.state.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Debug("application ready", "database", cfg.DatabasePath())
	return a, nil
}

func (a *App) openStores() error {
	var err error
	dbPath := a.config.DatabasePath()

	if dbPath == MemoryDatabase {
		a.db, err = currencysqlite.OpenInMemory()
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		a.db, err = currencysqlite.Open(dbPath)
	}
	if err != nil {
		return err
	}

	if a.currencies, err = currencysqlite.NewWithDB(a.db); err != nil {
		return err
	}
	if a.favorites, err = favsqlite.NewWithDB(a.db); err != nil {
		return err
	}
	if a.history, err = historysqlite.NewWithDB(a.db); err != nil {
		return err
	}
	if a.prefs, err = prefs.NewStore(a.config.PrefsDir()); err != nil {
		return err
	}
	return nil
}

// Config returns the application configuration.
func (a *App) Config() config.Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// State returns the state store.
func (a *App) State() *state.Store { return a.state }

// Currencies returns the currency repository.
func (a *App) Currencies() *currencysqlite.Store { return a.currencies }

// Favorites returns the favorites store.
func (a *App) Favorites() *favsqlite.Store { return a.favorites }

// History returns the price history store.
func (a *App) History() *historysqlite.Store { return a.history }

// Prefs returns the preferences store.
func (a *App) Prefs() *prefs.Store { return a.prefs }

// Market returns the market data client.
func (a *App) Market() *marketdata.Client { return a.market }

// PruneHistory drops price samples older than the configured retention.
// A zero retention keeps everything.
func (a *App) PruneHistory(ctx context.Context) (int64, error) {
	return a.PruneHistoryOlderThan(ctx, a.config.History.Retention)
}

// PruneHistoryOlderThan drops price samples older than age.
func (a *App) PruneHistoryOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, nil
	}
	n, err := a.history.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.logger.Info("pruned price history", "deleted", n, "older_than", age)
	}
	return n, nil
}

// Close releases every resource. It is safe to call on a partially opened App.
func (a *App) Close() error {
	if a.history != nil {
		a.history.Close()
	}
	if a.favorites != nil {
		a.favorites.Close()
	}
	if a.currencies != nil {
		a.currencies.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
