package state

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/artpar/coinshelf/internal/currency"
	currencysqlite "github.com/artpar/coinshelf/internal/currency/sqlite"
	favsqlite "github.com/artpar/coinshelf/internal/favorites/sqlite"
	"github.com/artpar/coinshelf/internal/marketdata"
	"github.com/artpar/coinshelf/internal/prefs"
	"github.com/artpar/coinshelf/internal/pricehistory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo wraps a real repository and can be told to fail reads, hold
// the next read after it has run, or block ClearAll.
type flakyRepo struct {
	*currencysqlite.Store

	mu        sync.Mutex
	readErr   error
	readGate  chan struct{}
	readHeld  chan struct{}
	clearGate chan struct{}
	entered   chan struct{}
}

// holdNextRead makes the next GetByTag or GetCombined block after reading
// until release is closed. held is closed once the read has run.
func (r *flakyRepo) holdNextRead() (release, held chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readGate = make(chan struct{})
	r.readHeld = make(chan struct{})
	return r.readGate, r.readHeld
}

func (r *flakyRepo) hold() {
	r.mu.Lock()
	gate, held := r.readGate, r.readHeld
	r.readGate, r.readHeld = nil, nil
	r.mu.Unlock()

	if gate != nil {
		close(held)
		<-gate
	}
}

func (r *flakyRepo) failReads(err error) {
	r.mu.Lock()
	r.readErr = err
	r.mu.Unlock()
}

func (r *flakyRepo) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readErr
}

func (r *flakyRepo) GetByTag(ctx context.Context, tag currency.ListTag) ([]currency.Record, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	records, err := r.Store.GetByTag(ctx, tag)
	r.hold()
	return records, err
}

func (r *flakyRepo) GetCombined(ctx context.Context) ([]currency.Record, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	records, err := r.Store.GetCombined(ctx)
	r.hold()
	return records, err
}

func (r *flakyRepo) ClearAll(ctx context.Context) error {
	if r.clearGate != nil {
		close(r.entered)
		<-r.clearGate
	}
	return r.Store.ClearAll(ctx)
}

type fixture struct {
	store *Store
	repo  *flakyRepo
	favs  *favsqlite.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := currencysqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cur, err := currencysqlite.NewWithDB(db)
	require.NoError(t, err)
	favs, err := favsqlite.NewWithDB(db)
	require.NoError(t, err)

	repo := &flakyRepo{Store: cur}
	store := New(repo, repo, favs, opts...)
	require.NoError(t, store.Init(context.Background()))

	return &fixture{store: store, repo: repo, favs: favs}
}

func namesSorted(records []currency.Record) bool {
	return sort.SliceIsSorted(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
}

func TestStore_Init(t *testing.T) {
	f := newFixture(t)
	snap := f.store.Snapshot()

	assert.Equal(t, DefaultMode, snap.Mode)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.True(t, snap.Loaded())
}

func TestStore_InitSchemaFailure(t *testing.T) {
	db, err := currencysqlite.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	cur, err := currencysqlite.NewWithDB(db)
	require.NoError(t, err)
	favs, err := favsqlite.NewWithDB(db)
	require.NoError(t, err)

	schemaErr := &currency.SchemaError{Op: "create table", Err: errors.New("disk I/O error")}
	store := New(cur, failingSchema{err: schemaErr}, favs)

	err = store.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, currency.ErrSchema)
	assert.Equal(t, schemaErr, store.Snapshot().Err)
}

type failingSchema struct{ err error }

func (f failingSchema) EnsureSchema(context.Context) error   { return f.err }
func (f failingSchema) RecreateSchema(context.Context) error { return f.err }

func TestStore_InsertMockData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.InsertMockData(ctx))

	snap := f.store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Len(t, snap.Items, 15)
	assert.True(t, namesSorted(snap.Items))

	crypto, err := f.repo.GetByTag(ctx, currency.ListCrypto)
	require.NoError(t, err)
	assert.Len(t, crypto, 15)
	assert.True(t, namesSorted(crypto))

	combined, err := f.repo.GetCombined(ctx)
	require.NoError(t, err)
	assert.Len(t, combined, 22)

	require.NoError(t, f.store.SetMode(ctx, ModeAll))
	assert.Len(t, f.store.Snapshot().Items, 22)

	require.NoError(t, f.store.SetMode(ctx, ModeFiat))
	assert.Len(t, f.store.Snapshot().Items, 7)
}

func TestStore_ClearDatabaseKeepsFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.InsertMockData(ctx))
	_, err := f.store.ToggleFavorite(ctx, "BTC")
	require.NoError(t, err)
	before := f.store.Snapshot().Favorites

	require.NoError(t, f.store.ClearDatabase(ctx))

	snap := f.store.Snapshot()
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Loading)
	assert.True(t, before.Equal(snap.Favorites))

	crypto, err := f.repo.GetByTag(ctx, currency.ListCrypto)
	require.NoError(t, err)
	assert.Empty(t, crypto)

	persisted, err := f.favs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Contains("BTC"))
}

func TestStore_FailedReloadKeepsItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.InsertMockData(ctx))
	loaded := f.store.Snapshot().Items
	require.Len(t, loaded, 15)

	boom := &currency.StorageError{Op: "get by tag", Err: errors.New("database is locked")}
	f.repo.failReads(boom)

	err := f.store.SetMode(ctx, ModeFiat)
	require.Error(t, err)
	assert.ErrorIs(t, err, currency.ErrStorage)

	snap := f.store.Snapshot()
	assert.Equal(t, ModeCrypto, snap.Mode, "mode stays on the loaded items")
	assert.False(t, snap.Loading)
	assert.Equal(t, loaded, snap.Items)
	assert.ErrorIs(t, snap.Err, currency.ErrStorage)

	f.repo.failReads(nil)
	require.NoError(t, f.store.SetMode(ctx, ModeFiat))
	snap = f.store.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Len(t, snap.Items, 7)
}

func TestStore_ClearDatabaseDropsInFlightLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.InsertMockData(ctx))
	require.NoError(t, f.store.SetMode(ctx, ModeFiat))

	release, held := f.repo.holdNextRead()
	done := make(chan error, 1)
	go func() {
		done <- f.store.SetMode(ctx, ModeCrypto)
	}()

	select {
	case <-held:
	case <-time.After(5 * time.Second):
		t.Fatal("SetMode did not read")
	}

	require.NoError(t, f.store.ClearDatabase(ctx))
	close(release)
	require.NoError(t, <-done)

	snap := f.store.Snapshot()
	assert.Equal(t, ModeCrypto, snap.Mode)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)

	crypto, err := f.repo.GetByTag(ctx, currency.ListCrypto)
	require.NoError(t, err)
	assert.Empty(t, crypto)
}

func TestStore_InsertMockDataDropsInFlightLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release, held := f.repo.holdNextRead()
	done := make(chan error, 1)
	go func() {
		done <- f.store.SetMode(ctx, ModeAll)
	}()

	select {
	case <-held:
	case <-time.After(5 * time.Second):
		t.Fatal("SetMode did not read")
	}

	require.NoError(t, f.store.InsertMockData(ctx))
	close(release)
	require.NoError(t, <-done)

	snap := f.store.Snapshot()
	assert.Equal(t, ModeAll, snap.Mode)
	assert.Len(t, snap.Items, 22)
	assert.False(t, snap.Loading)
}

func TestStore_MutationsAreSingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.clearGate = make(chan struct{})
	f.repo.entered = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- f.store.ClearDatabase(ctx)
	}()

	select {
	case <-f.repo.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("ClearDatabase did not start")
	}

	version := f.store.Snapshot().Version
	assert.ErrorIs(t, f.store.InsertMockData(ctx), ErrBusy)
	assert.ErrorIs(t, f.store.ClearDatabase(ctx), ErrBusy)
	assert.ErrorIs(t, f.store.SeedFromRemote(ctx, &fakeSource{}, 5), ErrBusy)
	assert.Equal(t, version, f.store.Snapshot().Version)

	close(f.repo.clearGate)
	require.NoError(t, <-done)

	f.repo.clearGate = nil
	assert.NoError(t, f.store.InsertMockData(ctx))
}

func TestStore_FavoritesMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.InsertMockData(ctx))

	added, err := f.store.ToggleFavorite(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, added)
	_, err = f.store.ToggleFavorite(ctx, "BTC")
	require.NoError(t, err)
	_, err = f.store.ToggleFavorite(ctx, "DOGE")
	require.NoError(t, err)

	require.NoError(t, f.store.SetMode(ctx, ModeFavorites))
	snap := f.store.Snapshot()
	assert.Equal(t, []string{"BTC", "ETH"}, currency.IDs(snap.Items))
	assert.True(t, snap.Favorites.Contains("DOGE"))

	t.Run("toggling re-derives items", func(t *testing.T) {
		added, err := f.store.ToggleFavorite(ctx, "BTC")
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, []string{"ETH"}, currency.IDs(f.store.Snapshot().Items))
		assert.False(t, f.store.IsFavorite("BTC"))
		assert.True(t, f.store.IsFavorite("ETH"))
	})

	t.Run("favorite records", func(t *testing.T) {
		assert.Equal(t, []string{"ETH"}, currency.IDs(f.store.FavoriteRecords()))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := f.store.ToggleFavorite(ctx, "")
		assert.Error(t, err)
	})
}

func TestStore_FavoritesModeIgnoresPreviousTab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.InsertMockData(ctx))

	_, err := f.store.ToggleFavorite(ctx, "EUR")
	require.NoError(t, err)
	_, err = f.store.ToggleFavorite(ctx, "BTC")
	require.NoError(t, err)

	for _, from := range []Mode{ModeCrypto, ModeFiat, ModeAll} {
		require.NoError(t, f.store.SetMode(ctx, from))
		require.NoError(t, f.store.SetMode(ctx, ModeFavorites))
		assert.ElementsMatch(t, []string{"BTC", "EUR"}, currency.IDs(f.store.Snapshot().Items), "from %s", from)
	}
}

func TestStore_FavoritesModeLoadsSupersetWhenNoneLoaded(t *testing.T) {
	dir := t.TempDir()
	db, err := currencysqlite.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	cur, err := currencysqlite.NewWithDB(db)
	require.NoError(t, err)
	favs, err := favsqlite.NewWithDB(db)
	require.NoError(t, err)
	p, err := prefs.NewStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cur.InsertMany(ctx, currency.ListFiat, []currency.Record{
		{ID: "EUR", Name: "Euro", Symbol: "€"},
		{ID: "USD", Name: "United States Dollar", Symbol: "$"},
	}))
	require.NoError(t, favs.Add(ctx, "EUR"))
	require.NoError(t, p.SaveMode(ctx, "favorites"))

	store := New(cur, cur, favs, WithPreferences(p))
	require.NoError(t, store.Init(ctx))

	snap := store.Snapshot()
	assert.Equal(t, ModeFavorites, snap.Mode)
	assert.Equal(t, []string{"EUR"}, currency.IDs(snap.Items))
}

func TestStore_Query(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.InsertMockData(ctx))

	f.store.SetQuery("bit")
	snap := f.store.Snapshot()
	assert.True(t, snap.IsSearching)
	assert.Len(t, snap.Items, 15)
	assert.Equal(t, []string{"BTC", "BCH"}, currency.IDs(f.store.FilteredList()))

	f.store.SetQuery("classic")
	assert.Equal(t, []string{"ETC"}, currency.IDs(f.store.FilteredList()))

	f.store.ClearQuery()
	assert.False(t, f.store.Snapshot().IsSearching)
	assert.Len(t, f.store.FilteredList(), 15)
}

func TestStore_SetModeInvalid(t *testing.T) {
	f := newFixture(t)
	err := f.store.SetMode(context.Background(), Mode("C"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestStore_Subscribe(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var seen []State
	unsubscribe := f.store.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	f.store.SetQuery("eth")
	unsubscribe()
	f.store.SetQuery("btc")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "eth", seen[0].Query)
}

type fakeSource struct {
	records []currency.Record
	err     error
}

func (s *fakeSource) FetchTopCurrencies(ctx context.Context, limit int) ([]currency.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *fakeSource) FetchByID(ctx context.Context, id string) (*currency.Record, error) {
	return nil, nil
}

type memRecorder struct {
	entries []pricehistory.Entry
}

func (r *memRecorder) AddMany(ctx context.Context, entries []pricehistory.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func TestStore_SeedFromRemote(t *testing.T) {
	rec := &memRecorder{}
	f := newFixture(t, WithRecorder(rec))
	ctx := context.Background()

	source := &fakeSource{records: []currency.Record{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: currency.Float(43000), List: currency.ListCrypto},
		{ID: "solana", Name: "Solana", Symbol: "SOL", Price: currency.Float(98), List: currency.ListCrypto},
	}}

	require.NoError(t, f.store.SeedFromRemote(ctx, source, 2))
	assert.Equal(t, []string{"bitcoin", "solana"}, currency.IDs(f.store.Snapshot().Items))
	require.Len(t, rec.entries, 2)
	assert.Equal(t, pricehistory.SourceRemote, rec.entries[0].Source)

	t.Run("fetch errors propagate unchanged", func(t *testing.T) {
		fetchErr := &marketdata.FetchError{Op: "fetch top currencies", StatusCode: 429, Err: errors.New("Too Many Requests")}
		err := f.store.SeedFromRemote(ctx, &fakeSource{err: fetchErr}, 2)
		assert.Same(t, fetchErr, err)
		assert.ErrorIs(t, err, marketdata.ErrFetch)

		snap := f.store.Snapshot()
		assert.Len(t, snap.Items, 2)
		assert.ErrorIs(t, snap.Err, marketdata.ErrFetch)
	})

	t.Run("nil source", func(t *testing.T) {
		assert.Error(t, f.store.SeedFromRemote(ctx, nil, 2))
	})
}

func TestStore_SeedOverride(t *testing.T) {
	f := newFixture(t, WithSeed(
		[]currency.Record{{ID: "X", Name: "Xcoin", Symbol: "X"}},
		[]currency.Record{{ID: "Y", Name: "Ydollar", Symbol: "Y"}},
	))
	ctx := context.Background()

	require.NoError(t, f.store.InsertMockData(ctx))
	require.NoError(t, f.store.SetMode(ctx, ModeAll))
	assert.Equal(t, []string{"X", "Y"}, currency.IDs(f.store.Snapshot().Items))
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "coinshelf.db")
	ctx := context.Background()

	open := func() (*Store, func()) {
		db, err := currencysqlite.Open(dbPath)
		require.NoError(t, err)
		cur, err := currencysqlite.NewWithDB(db)
		require.NoError(t, err)
		favs, err := favsqlite.NewWithDB(db)
		require.NoError(t, err)
		p, err := prefs.NewStore(filepath.Join(dir, "prefs"))
		require.NoError(t, err)

		store := New(cur, cur, favs, WithPreferences(p))
		require.NoError(t, store.Init(ctx))
		return store, func() { db.Close() }
	}

	store, closeDB := open()
	require.NoError(t, store.InsertMockData(ctx))
	_, err := store.ToggleFavorite(ctx, "EUR")
	require.NoError(t, err)
	require.NoError(t, store.SetMode(ctx, ModeAll))
	require.NoError(t, store.SetMode(ctx, ModeFavorites))
	assert.Equal(t, []string{"EUR"}, currency.IDs(store.Snapshot().Items))
	closeDB()

	reopened, closeDB := open()
	defer closeDB()

	snap := reopened.Snapshot()
	assert.Equal(t, ModeFavorites, snap.Mode)
	assert.True(t, snap.Favorites.Contains("EUR"))
	assert.Equal(t, []string{"EUR"}, currency.IDs(snap.Items))
}
