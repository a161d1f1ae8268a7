// Package state holds the application view: the active mode, the loaded
// currencies, the search query and the favorite set. All transitions go
// through Reduce so every change is observable as a new snapshot.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/artpar/coinshelf/internal/favorites"
	"github.com/artpar/coinshelf/internal/marketdata"
	"github.com/artpar/coinshelf/internal/prefs"
	"github.com/artpar/coinshelf/internal/pricehistory"
	"github.com/artpar/coinshelf/internal/seed"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a mutating operation is already running.
var ErrBusy = errors.New("another operation is in progress")

// Preferences persists the selected mode across restarts.
type Preferences interface {
	LoadPreferences(ctx context.Context) (prefs.Preferences, error)
	SaveMode(ctx context.Context, mode string) error
}

// Recorder stores price snapshots taken when the catalog is loaded.
type Recorder interface {
	AddMany(ctx context.Context, entries []pricehistory.Entry) error
}

// Store is the application state container. It is safe for concurrent use.
type Store struct {
	repo      currency.Repository
	schema    currency.SchemaManager
	favorites favorites.Store
	prefs     Preferences
	recorder  Recorder
	logger    *slog.Logger

	seedCrypto []currency.Record
	seedFiat   []currency.Record

	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int

	// favMu orders favorite writes so the persisted set matches the snapshot.
	favMu sync.Mutex

	// mutating admits one ClearDatabase, InsertMockData or SeedFromRemote at a time.
	mutating *semaphore.Weighted
}

// Option configures a Store.
type Option func(*Store)

// WithPreferences persists the selected mode.
func WithPreferences(p Preferences) Option {
	return func(s *Store) {
		s.prefs = p
	}
}

// WithRecorder records price snapshots whenever the catalog is seeded.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithSeed replaces the built-in mock catalogs.
func WithSeed(crypto, fiat []currency.Record) Option {
	return func(s *Store) {
		s.seedCrypto = crypto
		s.seedFiat = fiat
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a state store. Call Init before use.
func New(repo currency.Repository, schema currency.SchemaManager, favs favorites.Store, opts ...Option) *Store {
	s := &Store{
		repo:        repo,
		schema:      schema,
		favorites:   favs,
		logger:      slog.Default(),
		subscribers: make(map[int]func(State)),
		mutating:    semaphore.NewWeighted(1),
		state: State{
			Mode:  DefaultMode,
			Items: []currency.Record{},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.seedCrypto == nil && s.seedFiat == nil {
		s.seedCrypto = seed.Crypto()
		s.seedFiat = seed.Fiat()
	}

	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every new state. Snapshots may arrive
// out of order under concurrent transitions; compare Version. The returned
// function unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) dispatch(actions ...Action) State {
	s.mu.Lock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	next := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Init prepares the schema, loads favorites and restores the saved mode.
// A schema failure is returned as *currency.SchemaError and is fatal.
func (s *Store) Init(ctx context.Context) error {
	if err := s.schema.EnsureSchema(ctx); err != nil {
		s.logger.Error("schema initialization failed", "error", err)
		snap := s.Snapshot()
		s.dispatch(LoadFailed{Mode: snap.Mode, Epoch: snap.epoch, Err: err})
		return err
	}

	set, err := s.favorites.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}
	s.dispatch(FavoritesChanged{Favorites: set})

	mode := DefaultMode
	if s.prefs != nil {
		p, err := s.prefs.LoadPreferences(ctx)
		if err != nil {
			s.logger.Warn("failed to load preferences", "error", err)
		} else if saved, err := ParseMode(p.Mode); err == nil {
			mode = saved
		}
	}

	return s.setMode(ctx, mode, false)
}

// SetMode switches mode and loads its items. Favorites mode always reads the
// combined list so it does not depend on the previously selected mode. On
// failure the previous mode and items are kept and the error is both returned
// and recorded in State.Err.
func (s *Store) SetMode(ctx context.Context, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return s.setMode(ctx, mode, true)
}

func (s *Store) setMode(ctx context.Context, mode Mode, persist bool) error {
	next := s.dispatch(ModeSelected{Mode: mode}, LoadStarted{})

	if err := s.load(ctx, mode, next.epoch); err != nil {
		return err
	}

	if persist && s.prefs != nil {
		if err := s.prefs.SaveMode(ctx, string(mode)); err != nil {
			s.logger.Warn("failed to save mode", "mode", mode, "error", err)
		}
	}
	return nil
}

// load fetches the records for mode. The result is applied only while the
// store is still in epoch.
func (s *Store) load(ctx context.Context, mode Mode, epoch uint64) error {
	start := time.Now()

	var (
		records []currency.Record
		err     error
	)
	switch mode {
	case ModeCrypto:
		records, err = s.repo.GetByTag(ctx, currency.ListCrypto)
	case ModeFiat:
		records, err = s.repo.GetByTag(ctx, currency.ListFiat)
	case ModeAll, ModeFavorites:
		records, err = s.repo.GetCombined(ctx)
	}

	if err != nil {
		s.logger.Warn("load failed", "mode", mode, "error", err)
		s.dispatch(LoadFailed{Mode: mode, Epoch: epoch, Err: err})
		return err
	}

	next := s.dispatch(LoadSucceeded{Mode: mode, Epoch: epoch, Records: records})
	if next.epoch != epoch {
		s.logger.Debug("dropped stale load", "mode", mode, "epoch", epoch)
		return nil
	}
	s.logger.Debug("loaded currencies",
		"mode", mode,
		"count", len(next.Items),
		"duration", time.Since(start),
	)
	return nil
}

// reload starts a new epoch and loads the current mode in it.
func (s *Store) reload(ctx context.Context) error {
	next := s.dispatch(DataChanged{})
	return s.load(ctx, next.Mode, next.epoch)
}

// SetQuery replaces the search query. Items are not touched.
func (s *Store) SetQuery(q string) {
	s.dispatch(QueryChanged{Query: q})
}

// ClearQuery resets the search query.
func (s *Store) ClearQuery() {
	s.dispatch(QueryChanged{Query: ""})
}

// FilteredList returns the current items matching the current query.
func (s *Store) FilteredList() []currency.Record {
	return s.Snapshot().Filtered()
}

// ToggleFavorite flips id in the favorite set and persists the change before
// returning. It reports whether id is now a favorite.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, favorites.ErrInvalidID
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()

	next := favorites.Toggle(s.Snapshot().Favorites, id)
	added := next.Contains(id)

	var err error
	if added {
		err = s.favorites.Add(ctx, id)
	} else {
		err = s.favorites.Remove(ctx, id)
	}
	if err != nil {
		return !added, fmt.Errorf("failed to save favorite %s: %w", id, err)
	}

	s.dispatch(FavoritesChanged{Favorites: next})
	s.logger.Debug("toggled favorite", "id", id, "favorite", added)
	return added, nil
}

// IsFavorite reports whether id is a favorite.
func (s *Store) IsFavorite(id string) bool {
	return s.Snapshot().Favorites.Contains(id)
}

// FavoriteRecords returns the favorites present in the last loaded superset.
func (s *Store) FavoriteRecords() []currency.Record {
	snap := s.Snapshot()
	return favorites.DeriveRecords(snap.superset, snap.Favorites)
}

// ClearDatabase deletes every currency. Favorites are kept.
func (s *Store) ClearDatabase(ctx context.Context) error {
	if !s.mutating.TryAcquire(1) {
		return ErrBusy
	}
	defer s.mutating.Release(1)

	started := s.dispatch(MutationStarted{})
	if err := s.repo.ClearAll(ctx); err != nil {
		s.logger.Warn("clear database failed", "error", err)
		s.dispatch(LoadFailed{Mode: started.Mode, Epoch: started.epoch, Err: err})
		return err
	}

	s.dispatch(ItemsCleared{})
	s.logger.Info("cleared currency database")
	return nil
}

// InsertMockData recreates the table, loads the built-in catalogs and reloads
// the current mode. The steps run in order and stop at the first failure.
func (s *Store) InsertMockData(ctx context.Context) error {
	if !s.mutating.TryAcquire(1) {
		return ErrBusy
	}
	defer s.mutating.Release(1)

	started := s.dispatch(MutationStarted{})
	fail := func(err error) error {
		s.logger.Warn("insert mock data failed", "error", err)
		s.dispatch(LoadFailed{Mode: started.Mode, Epoch: started.epoch, Err: err})
		return err
	}

	if err := s.schema.RecreateSchema(ctx); err != nil {
		return fail(err)
	}
	if err := s.repo.InsertMany(ctx, currency.ListCrypto, s.seedCrypto); err != nil {
		return fail(err)
	}
	if err := s.repo.InsertMany(ctx, currency.ListFiat, s.seedFiat); err != nil {
		return fail(err)
	}

	seeded := append(append([]currency.Record{}, s.seedCrypto...), s.seedFiat...)
	s.record(ctx, seeded, pricehistory.SourceSeed)
	s.logger.Info("inserted mock data",
		"crypto", len(s.seedCrypto),
		"fiat", len(s.seedFiat),
	)

	return s.reload(ctx)
}

// SeedFromRemote loads the top crypto currencies from source into the
// crypto list and reloads the current mode. Fetch errors are returned as is.
func (s *Store) SeedFromRemote(ctx context.Context, source marketdata.Source, limit int) error {
	if source == nil {
		return errors.New("no market data source configured")
	}
	if !s.mutating.TryAcquire(1) {
		return ErrBusy
	}
	defer s.mutating.Release(1)

	started := s.dispatch(MutationStarted{})
	fail := func(err error) error {
		s.logger.Warn("remote seed failed", "error", err)
		s.dispatch(LoadFailed{Mode: started.Mode, Epoch: started.epoch, Err: err})
		return err
	}

	records, err := source.FetchTopCurrencies(ctx, limit)
	if err != nil {
		return fail(err)
	}

	if err := s.repo.InsertMany(ctx, currency.ListCrypto, records); err != nil {
		return fail(err)
	}

	s.record(ctx, records, pricehistory.SourceRemote)
	s.logger.Info("seeded from remote", "count", len(records))

	return s.reload(ctx)
}

func (s *Store) record(ctx context.Context, records []currency.Record, source pricehistory.Source) {
	if s.recorder == nil {
		return
	}
	entries := pricehistory.EntriesFromRecords(records, source, time.Now())
	if err := s.recorder.AddMany(ctx, entries); err != nil {
		s.logger.Warn("failed to record price history", "source", source, "error", err)
	}
}
