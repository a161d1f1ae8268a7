package views

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/coinshelf/internal/currency"
	currencysqlite "github.com/artpar/coinshelf/internal/currency/sqlite"
	favsqlite "github.com/artpar/coinshelf/internal/favorites/sqlite"
	"github.com/artpar/coinshelf/internal/state"
	"github.com/artpar/coinshelf/internal/tui/vim"
)

func newStore(t *testing.T) *state.Store {
	t.Helper()

	db, err := currencysqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cur, err := currencysqlite.NewWithDB(db)
	require.NoError(t, err)
	favs, err := favsqlite.NewWithDB(db)
	require.NoError(t, err)

	store := state.New(cur, cur, favs)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func newBrowser(t *testing.T, opts ...Option) (*Browser, *state.Store) {
	t.Helper()
	store := newStore(t)
	opts = append([]Option{WithClipboard(func(string) error { return nil })}, opts...)
	b := NewBrowser(context.Background(), store, opts...)
	b.SetSize(100, 30)
	return b, store
}

func seeded(t *testing.T, opts ...Option) (*Browser, *state.Store) {
	t.Helper()
	b, store := newBrowser(t, opts...)
	require.NoError(t, store.InsertMockData(context.Background()))
	b.refresh()
	return b, store
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(b *Browser, keys ...string) {
	for _, k := range keys {
		b.Update(keyRunes(k))
	}
}

// finish runs a background command and feeds its result back.
func finish(t *testing.T, b *Browser, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(opDoneMsg)
	require.True(t, ok, "expected opDoneMsg, got %T", msg)
	b.Update(done)
}

func selectedID(t *testing.T, b *Browser) string {
	t.Helper()
	r, ok := b.List().Selected()
	require.True(t, ok)
	return r.ID
}

func TestNewBrowser(t *testing.T) {
	t.Run("starts in normal mode on the store snapshot", func(t *testing.T) {
		b, store := newBrowser(t)
		assert.Equal(t, vim.ModeNormal, b.Mode())
		assert.Equal(t, store.Snapshot().Version, b.State().Version)
		assert.Equal(t, 0, b.List().Len())
	})

	t.Run("empty view suggests seeding", func(t *testing.T) {
		b, _ := newBrowser(t)
		view := b.View()
		assert.Contains(t, view, "coinshelf")
		assert.Contains(t, view, "Crypto")
		assert.Contains(t, view, "Press s to load sample data")
	})
}

func TestBrowser_Seed(t *testing.T) {
	b, _ := newBrowser(t)

	_, cmd := b.Update(keyRunes("s"))
	assert.Equal(t, "seed", b.Pending())
	finish(t, b, cmd)

	assert.Empty(t, b.Pending())
	assert.Equal(t, 15, b.List().Len())
	assert.Equal(t, "Sample data loaded", b.Notification())

	b.Update(clearNotificationMsg{})
	assert.Empty(t, b.Notification())
}

func TestBrowser_Navigation(t *testing.T) {
	t.Run("j and k move the cursor", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "j", "j")
		assert.Equal(t, 2, b.List().Cursor())
		press(b, "k")
		assert.Equal(t, 1, b.List().Cursor())
	})

	t.Run("arrow keys", func(t *testing.T) {
		b, _ := seeded(t)
		b.Update(tea.KeyMsg{Type: tea.KeyDown})
		assert.Equal(t, 1, b.List().Cursor())
		b.Update(tea.KeyMsg{Type: tea.KeyUp})
		assert.Equal(t, 0, b.List().Cursor())
	})

	t.Run("count prefix", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "3", "j")
		assert.Equal(t, 3, b.List().Cursor())
		press(b, "1", "0", "j")
		assert.Equal(t, 13, b.List().Cursor())
	})

	t.Run("G and gg", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "G")
		assert.Equal(t, 14, b.List().Cursor())
		press(b, "g", "g")
		assert.Equal(t, 0, b.List().Cursor())
		press(b, "5", "G")
		assert.Equal(t, 4, b.List().Cursor())
	})

	t.Run("unfinished sequence falls through", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "g", "j")
		assert.Equal(t, 1, b.List().Cursor())
	})

	t.Run("cursor stays in bounds", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "k")
		assert.Equal(t, 0, b.List().Cursor())
		press(b, "9", "9", "j")
		assert.Equal(t, 14, b.List().Cursor())
	})

	t.Run("half page", func(t *testing.T) {
		b, _ := seeded(t)
		b.SetSize(100, 11)
		b.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
		assert.Equal(t, 3, b.List().Cursor())
		b.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
		assert.Equal(t, 0, b.List().Cursor())
	})
}

func TestBrowser_ModeSwitch(t *testing.T) {
	t.Run("tab cycles to the next mode", func(t *testing.T) {
		b, _ := seeded(t)

		_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyTab})
		finish(t, b, cmd)
		assert.Equal(t, state.ModeFiat, b.State().Mode)
		assert.Equal(t, 7, b.List().Len())

		_, cmd = b.Update(tea.KeyMsg{Type: tea.KeyTab})
		finish(t, b, cmd)
		assert.Equal(t, state.ModeAll, b.State().Mode)
		assert.Equal(t, 22, b.List().Len())
	})

	t.Run("shift+tab goes back", func(t *testing.T) {
		b, _ := seeded(t)

		_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
		finish(t, b, cmd)
		assert.Equal(t, state.ModeFavorites, b.State().Mode)
		assert.Contains(t, b.View(), "No favorites yet")
	})
}

func TestBrowser_Search(t *testing.T) {
	t.Run("typing filters live", func(t *testing.T) {
		b, store := seeded(t)

		press(b, "/")
		assert.Equal(t, vim.ModeSearch, b.Mode())

		press(b, "b", "i", "t")
		assert.Equal(t, "bit", store.Snapshot().Query)
		assert.Equal(t, []string{"BTC", "BCH"}, currency.IDs(store.FilteredList()))
		assert.Equal(t, 2, b.List().Len())

		b.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Equal(t, vim.ModeNormal, b.Mode())
		assert.Equal(t, "bit", b.State().Query)
		assert.Contains(t, b.View(), "/bit")
	})

	t.Run("backspace edits the query", func(t *testing.T) {
		b, store := seeded(t)
		press(b, "/", "x", "r", "z")
		b.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		assert.Equal(t, "xr", store.Snapshot().Query)
	})

	t.Run("escape clears the query", func(t *testing.T) {
		b, store := seeded(t)
		press(b, "/", "e", "t", "h")
		b.Update(tea.KeyMsg{Type: tea.KeyEsc})

		assert.Equal(t, vim.ModeNormal, b.Mode())
		assert.Empty(t, store.Snapshot().Query)
		assert.Equal(t, 15, b.List().Len())
	})

	t.Run("escape in normal mode clears an accepted query", func(t *testing.T) {
		b, store := seeded(t)
		press(b, "/", "e", "t", "h")
		b.Update(tea.KeyMsg{Type: tea.KeyEnter})
		b.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Empty(t, store.Snapshot().Query)
	})

	t.Run("no matches", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "/", "z", "z", "z")
		assert.Equal(t, 0, b.List().Len())
		assert.Contains(t, b.View(), `No matches for "zzz"`)
	})

	t.Run("search keys are not bindings", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "/", "q")
		assert.False(t, b.Quitting())
		assert.Equal(t, "q", b.State().Query)
	})
}

func TestBrowser_ToggleFavorite(t *testing.T) {
	b, store := seeded(t)
	press(b, "j")
	id := selectedID(t, b)

	_, cmd := b.Update(keyRunes("f"))
	finish(t, b, cmd)
	assert.True(t, store.IsFavorite(id))
	assert.True(t, b.State().Favorites.Contains(id))
	assert.Contains(t, b.Notification(), "Added")

	_, cmd = b.Update(keyRunes("f"))
	finish(t, b, cmd)
	assert.False(t, store.IsFavorite(id))
	assert.Contains(t, b.Notification(), "Removed")
}

func TestBrowser_FavoriteOnEmptyListIsNoop(t *testing.T) {
	b, _ := newBrowser(t)
	_, cmd := b.Update(keyRunes("f"))
	assert.Nil(t, cmd)
}

func TestBrowser_Yank(t *testing.T) {
	t.Run("copies the selected id", func(t *testing.T) {
		var copied string
		b, _ := seeded(t, WithClipboard(func(s string) error {
			copied = s
			return nil
		}))
		press(b, "y")

		assert.Equal(t, selectedID(t, b), copied)
		assert.Equal(t, "Copied "+copied, b.Notification())
	})

	t.Run("reports failure", func(t *testing.T) {
		b, _ := seeded(t, WithClipboard(func(string) error {
			return errors.New("no clipboard")
		}))
		press(b, "y")
		assert.Equal(t, "Copy failed", b.Notification())
	})
}

func TestBrowser_ClearDatabase(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		b, _ := seeded(t)

		press(b, "X")
		assert.Equal(t, vim.ModeConfirm, b.Mode())
		assert.Contains(t, b.View(), "Clear all currencies?")

		_, cmd := b.Update(keyRunes("y"))
		finish(t, b, cmd)
		assert.Equal(t, vim.ModeNormal, b.Mode())
		assert.Equal(t, 0, b.List().Len())
		assert.Equal(t, "Database cleared", b.Notification())
	})

	t.Run("cancelled", func(t *testing.T) {
		b, _ := seeded(t)
		press(b, "X", "n")
		assert.Equal(t, vim.ModeNormal, b.Mode())
		assert.Equal(t, 15, b.List().Len())
		assert.Equal(t, "Clear cancelled", b.Notification())
	})
}

func TestBrowser_RefreshWithoutSource(t *testing.T) {
	b, _ := seeded(t)
	press(b, "r")
	assert.Equal(t, "No market source configured", b.Notification())
	assert.Empty(t, b.Pending())
}

func TestBrowser_NotificationTimeout(t *testing.T) {
	t.Run("default schedules a clear", func(t *testing.T) {
		b, _ := seeded(t)
		_, cmd := b.Update(keyRunes("r"))
		assert.NotNil(t, cmd)
	})

	t.Run("zero keeps the notification", func(t *testing.T) {
		b, _ := seeded(t, WithNotificationTimeout(0))
		_, cmd := b.Update(keyRunes("r"))
		assert.Nil(t, cmd)
		assert.Equal(t, "No market source configured", b.Notification())
	})
}

func TestBrowser_OperationErrors(t *testing.T) {
	t.Run("busy", func(t *testing.T) {
		b, _ := seeded(t)
		b.Update(opDoneMsg{op: "seed", err: state.ErrBusy})
		assert.Equal(t, "Busy, try again", b.Notification())
	})

	t.Run("failure", func(t *testing.T) {
		b, _ := seeded(t)
		b.Update(opDoneMsg{op: "refresh", err: errors.New("timeout")})
		assert.Equal(t, "refresh failed: timeout", b.Notification())
	})
}

// fiatDown fails every fiat read.
type fiatDown struct{ *currencysqlite.Store }

func (r fiatDown) GetByTag(ctx context.Context, tag currency.ListTag) ([]currency.Record, error) {
	if tag == currency.ListFiat {
		return nil, &currency.StorageError{Op: "get by tag", Err: errors.New("database is locked")}
	}
	return r.Store.GetByTag(ctx, tag)
}

func TestBrowser_FailedSwitchKeepsLoadedMode(t *testing.T) {
	db, err := currencysqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cur, err := currencysqlite.NewWithDB(db)
	require.NoError(t, err)
	favs, err := favsqlite.NewWithDB(db)
	require.NoError(t, err)

	ctx := context.Background()
	store := state.New(fiatDown{cur}, cur, favs)
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.InsertMockData(ctx))

	b := NewBrowser(ctx, store, WithClipboard(func(string) error { return nil }))
	b.SetSize(100, 30)
	b.refresh()

	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyTab})
	finish(t, b, cmd)

	assert.Equal(t, state.ModeCrypto, b.State().Mode)
	assert.Equal(t, 15, b.List().Len())
	assert.Contains(t, b.Notification(), "switch mode failed")
	assert.Contains(t, b.View(), "Crypto · 15 items")
	assert.NotContains(t, b.View(), "Fiat · 15 items")
}

func TestBrowser_StateMsg(t *testing.T) {
	t.Run("applies newer snapshots", func(t *testing.T) {
		b, store := newBrowser(t)
		require.NoError(t, store.InsertMockData(context.Background()))

		b.Update(StateMsg{State: store.Snapshot()})
		assert.Equal(t, 15, b.List().Len())
	})

	t.Run("ignores older snapshots", func(t *testing.T) {
		b, store := seeded(t)
		old := store.Snapshot()
		old.Version = 0
		old.Items = nil

		b.Update(StateMsg{State: old})
		assert.Equal(t, 15, b.List().Len())
	})
}

func TestBrowser_Help(t *testing.T) {
	b, _ := seeded(t)
	press(b, "?")
	view := b.View()
	assert.Contains(t, view, "toggle favorite")
	assert.Contains(t, view, "first row")
	assert.Contains(t, view, "j/down")

	press(b, "?")
	assert.NotContains(t, b.View(), "toggle favorite")
}

func TestBrowser_Quit(t *testing.T) {
	t.Run("q", func(t *testing.T) {
		b, _ := newBrowser(t)
		_, cmd := b.Update(keyRunes("q"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.True(t, b.Quitting())
		assert.Empty(t, b.View())
	})

	t.Run("ctrl+c in search mode", func(t *testing.T) {
		b, _ := newBrowser(t)
		press(b, "/")
		_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		assert.True(t, b.Quitting())
	})
}

func TestBrowser_WindowSize(t *testing.T) {
	b, _ := seeded(t)
	b.Update(tea.WindowSizeMsg{Width: 60, Height: 8})
	press(b, "G")
	assert.Equal(t, 14, b.List().Cursor())
	assert.Equal(t, 12, b.List().Offset())
}

func TestPreviousMode(t *testing.T) {
	assert.Equal(t, state.ModeFavorites, previousMode(state.ModeCrypto))
	assert.Equal(t, state.ModeCrypto, previousMode(state.ModeFiat))
	assert.Equal(t, state.DefaultMode, previousMode(state.Mode("X")))
}
