package pricehistory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests runs the standard store test suite against any Store implementation.
func RunStoreTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("Add", func(t *testing.T) {
		runAddTests(t, newStore)
	})
	t.Run("List", func(t *testing.T) {
		runListTests(t, newStore)
	})
	t.Run("Prune", func(t *testing.T) {
		runPruneTests(t, newStore)
	})
}

func runAddTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("adds entry and returns ID", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		id, err := store.Add(context.Background(), Entry{
			CurrencyID: "bitcoin",
			Timestamp:  time.Now(),
			Price:      43250.5,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("keeps optional fields", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		mc, ch := 850e9, -1.25
		_, err := store.Add(ctx, Entry{
			CurrencyID: "bitcoin",
			Timestamp:  time.Now(),
			Price:      1,
			MarketCap:  &mc,
			Change24h:  &ch,
			Source:     SourceSeed,
		})
		require.NoError(t, err)

		entries, err := store.List(ctx, QueryOptions{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].MarketCap)
		require.NotNil(t, entries[0].Change24h)
		assert.InDelta(t, mc, *entries[0].MarketCap, 0.1)
		assert.InDelta(t, ch, *entries[0].Change24h, 0.0001)
		assert.Equal(t, SourceSeed, entries[0].Source)
	})

	t.Run("rejects entry without currency", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Add(context.Background(), Entry{Price: 1})
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("add many is all or nothing", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		err := store.AddMany(ctx, []Entry{
			{CurrencyID: "bitcoin", Price: 1},
			{Price: 2},
		})
		assert.ErrorIs(t, err, ErrInvalidEntry)

		count, err := store.Count(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, store.AddMany(ctx, []Entry{
			{CurrencyID: "bitcoin", Price: 1},
			{CurrencyID: "ethereum", Price: 2},
		}))
		count, err = store.Count(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func runListTests(t *testing.T, newStore func() (Store, func())) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, store Store) {
		t.Helper()
		var entries []Entry
		for i := 0; i < 5; i++ {
			entries = append(entries, Entry{
				CurrencyID: "bitcoin",
				Timestamp:  base.Add(time.Duration(i) * time.Hour),
				Price:      float64(100 + i),
				Source:     SourceChart,
			})
		}
		entries = append(entries, Entry{
			CurrencyID: "ethereum",
			Timestamp:  base,
			Price:      10,
			Source:     SourceRemote,
		})
		require.NoError(t, store.AddMany(context.Background(), entries))
	}

	t.Run("newest first", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)

		entries, err := store.List(context.Background(), QueryOptions{CurrencyID: "bitcoin"})
		require.NoError(t, err)
		require.Len(t, entries, 5)
		assert.Equal(t, 104.0, entries[0].Price)
		assert.Equal(t, 100.0, entries[4].Price)
		assert.True(t, entries[0].Timestamp.Equal(base.Add(4*time.Hour)))
	})

	t.Run("filters by time and source", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)
		ctx := context.Background()

		entries, err := store.List(ctx, QueryOptions{
			After:  base.Add(30 * time.Minute),
			Before: base.Add(3*time.Hour + 30*time.Minute),
		})
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		count, err := store.Count(ctx, QueryOptions{Source: SourceRemote})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("paginates", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		seed(t, store)
		ctx := context.Background()

		page, err := store.List(ctx, QueryOptions{CurrencyID: "bitcoin", Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, 103.0, page[0].Price)

		rest, err := store.List(ctx, QueryOptions{CurrencyID: "bitcoin", Offset: 3})
		require.NoError(t, err)
		assert.Len(t, rest, 2)
	})

	t.Run("empty store returns empty slice", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		entries, err := store.List(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func runPruneTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("removes entries older than cutoff", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		now := time.Now()
		require.NoError(t, store.AddMany(ctx, []Entry{
			{CurrencyID: "bitcoin", Timestamp: now.Add(-48 * time.Hour), Price: 1},
			{CurrencyID: "bitcoin", Timestamp: now.Add(-25 * time.Hour), Price: 2},
			{CurrencyID: "bitcoin", Timestamp: now, Price: 3},
		}))

		n, err := store.Prune(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		count, err := store.Count(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Add(ctx, Entry{CurrencyID: "bitcoin", Price: 1})
		require.NoError(t, err)
		require.NoError(t, store.Clear(ctx))

		count, err := store.Count(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
