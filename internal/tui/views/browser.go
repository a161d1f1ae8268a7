// Package views contains the top-level screens of the terminal browser.
package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/artpar/coinshelf/internal/marketdata"
	"github.com/artpar/coinshelf/internal/state"
	"github.com/artpar/coinshelf/internal/tui"
	"github.com/artpar/coinshelf/internal/tui/components"
	"github.com/artpar/coinshelf/internal/tui/vim"
)

const notificationTimeout = 2 * time.Second

// Backend is the part of the state store the browser drives.
type Backend interface {
	Snapshot() state.State
	SetMode(ctx context.Context, mode state.Mode) error
	SetQuery(q string)
	ClearQuery()
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	ClearDatabase(ctx context.Context) error
	InsertMockData(ctx context.Context) error
	SeedFromRemote(ctx context.Context, source marketdata.Source, limit int) error
}

// StateMsg carries a snapshot published by the state store.
type StateMsg struct {
	State state.State
}

// opDoneMsg reports the end of a background store operation.
type opDoneMsg struct {
	op     string
	result string
	err    error
}

// clearNotificationMsg is sent to clear the notification.
type clearNotificationMsg struct{}

// Browser is the currency browser screen.
type Browser struct {
	ctx     context.Context
	store   Backend
	source  marketdata.Source
	limit   int
	copyFn  func(string) error
	styles  tui.Styles
	list    *components.CurrencyList
	modes   *vim.ModeManager
	keys    *vim.KeyMap
	seq     *vim.Sequences
	snap    state.State
	width   int
	height  int
	pending string // running background operation

	notifyFor    time.Duration
	notification string
	showHelp     bool
	quitting     bool
}

// Option configures a Browser.
type Option func(*Browser)

// WithSource enables the remote refresh binding.
func WithSource(source marketdata.Source, limit int) Option {
	return func(b *Browser) {
		b.source = source
		b.limit = limit
	}
}

// WithStyles sets the styles.
func WithStyles(styles tui.Styles) Option {
	return func(b *Browser) {
		b.styles = styles
	}
}

// WithNotificationTimeout sets how long notifications stay up. Zero keeps
// them until the next one.
func WithNotificationTimeout(d time.Duration) Option {
	return func(b *Browser) {
		b.notifyFor = d
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(b *Browser) {
		b.copyFn = fn
	}
}

// NewBrowser creates a browser over an initialized store.
func NewBrowser(ctx context.Context, store Backend, opts ...Option) *Browser {
	b := &Browser{
		ctx:       ctx,
		store:     store,
		copyFn:    clipboard.WriteAll,
		styles:    tui.DefaultStyles(),
		modes:     vim.NewModeManager(),
		keys:      vim.NewKeyMap(),
		seq:       vim.NewSequences(),
		notifyFor: notificationTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.list = components.NewCurrencyList(b.styles)
	b.registerKeys()
	b.apply(store.Snapshot())
	return b
}

func (b *Browser) registerKeys() {
	n := vim.ModeNormal
	b.keys.Bind(n, "down", func() tea.Cmd { b.list.Move(b.modes.Count()); return nil }, "j", "down")
	b.keys.Bind(n, "up", func() tea.Cmd { b.list.Move(-b.modes.Count()); return nil }, "k", "up")
	b.keys.Bind(n, "half page down", func() tea.Cmd { b.list.Move(b.list.PageSize()); return nil }, "ctrl+d")
	b.keys.Bind(n, "half page up", func() tea.Cmd { b.list.Move(-b.list.PageSize()); return nil }, "ctrl+u")
	b.keys.Bind(n, "last row, or row N", func() tea.Cmd {
		if b.modes.HasCount() {
			b.list.Top()
			b.list.Move(b.modes.Count() - 1)
		} else {
			b.list.Bottom()
		}
		return nil
	}, "G")
	b.keys.Bind(n, "next mode", func() tea.Cmd { return b.switchMode(b.snap.Mode.Next()) }, "tab")
	b.keys.Bind(n, "previous mode", func() tea.Cmd { return b.switchMode(previousMode(b.snap.Mode)) }, "shift+tab")
	b.keys.Bind(n, "search", func() tea.Cmd {
		b.modes.SetMode(vim.ModeSearch)
		b.modes.SetInput(b.snap.Query)
		return nil
	}, "/")
	b.keys.Bind(n, "clear search", func() tea.Cmd {
		if b.snap.Query != "" {
			b.store.ClearQuery()
			b.refresh()
		}
		return nil
	}, "esc")
	b.keys.Bind(n, "toggle favorite", b.toggleFavorite, "f")
	b.keys.Bind(n, "copy id", b.yank, "y")
	b.keys.Bind(n, "load sample data", func() tea.Cmd {
		return b.run("seed", "Sample data loaded", b.store.InsertMockData)
	}, "s")
	b.keys.Bind(n, "refresh from market", b.refreshRemote, "r")
	b.keys.Bind(n, "clear database", func() tea.Cmd {
		b.modes.SetMode(vim.ModeConfirm)
		return nil
	}, "X")
	b.keys.Bind(n, "help", func() tea.Cmd { b.showHelp = !b.showHelp; return nil }, "?")
	b.keys.Bind(n, "quit", b.quit, "q")

	b.seq.Register("gg", func() tea.Cmd { b.list.Top(); return nil })
}

// Init implements tea.Model.
func (b *Browser) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.SetSize(msg.Width, msg.Height)
		return b, nil

	case StateMsg:
		if msg.State.Version >= b.snap.Version {
			b.apply(msg.State)
		}
		return b, nil

	case opDoneMsg:
		b.pending = ""
		b.refresh()
		switch {
		case errors.Is(msg.err, state.ErrBusy):
			return b, b.notify("Busy, try again")
		case msg.err != nil:
			return b, b.notify(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
		case msg.result != "":
			return b, b.notify(msg.result)
		}
		return b, nil

	case clearNotificationMsg:
		b.notification = ""
		return b, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return b, b.quit()
		}
		switch b.modes.Current() {
		case vim.ModeSearch:
			return b, b.handleSearchKey(msg)
		case vim.ModeConfirm:
			return b, b.handleConfirmKey(msg)
		default:
			return b, b.handleNormalKey(msg)
		}
	}
	return b, nil
}

func (b *Browser) handleNormalKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		r := msg.Runes[0]
		if (r >= '1' && r <= '9') || (r == '0' && b.modes.HasCount()) {
			b.modes.AppendCount(int(r - '0'))
			return nil
		}
		if r == 'g' || b.seq.Pending() {
			switch status, action := b.seq.Feed(string(r)); status {
			case vim.SequencePending:
				return nil
			case vim.SequenceComplete:
				b.modes.ResetCount()
				return action()
			}
		}
	}

	kb, ok := b.keys.Lookup(vim.ModeNormal, msg)
	if !ok {
		b.modes.ResetCount()
		return nil
	}
	cmd := kb.Run()
	if b.modes.IsNormal() {
		b.modes.ResetCount()
	}
	return cmd
}

func (b *Browser) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		b.modes.SetMode(vim.ModeNormal)
		return nil
	case tea.KeyEsc:
		b.modes.ClearInput()
		b.modes.SetMode(vim.ModeNormal)
		b.store.ClearQuery()
	case tea.KeyBackspace:
		b.modes.Backspace()
		b.store.SetQuery(b.modes.Input())
	case tea.KeySpace:
		b.modes.AppendInput(" ")
		b.store.SetQuery(b.modes.Input())
	case tea.KeyRunes:
		b.modes.AppendInput(string(msg.Runes))
		b.store.SetQuery(b.modes.Input())
	default:
		return nil
	}
	b.refresh()
	return nil
}

func (b *Browser) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	b.modes.SetMode(vim.ModeNormal)
	if msg.Type == tea.KeyRunes && (string(msg.Runes) == "y" || string(msg.Runes) == "X") {
		return b.run("clear", "Database cleared", b.store.ClearDatabase)
	}
	return b.notify("Clear cancelled")
}

func (b *Browser) switchMode(mode state.Mode) tea.Cmd {
	return b.run("switch mode", "", func(ctx context.Context) error {
		return b.store.SetMode(ctx, mode)
	})
}

func (b *Browser) toggleFavorite() tea.Cmd {
	r, ok := b.list.Selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		added, err := b.store.ToggleFavorite(b.ctx, r.ID)
		result := fmt.Sprintf("Removed %s from favorites", r.Symbol)
		if added {
			result = fmt.Sprintf("Added %s to favorites", r.Symbol)
		}
		return opDoneMsg{op: "favorite", result: result, err: err}
	}
}

func (b *Browser) yank() tea.Cmd {
	r, ok := b.list.Selected()
	if !ok {
		return nil
	}
	if err := b.copyFn(r.ID); err != nil {
		return b.notify("Copy failed")
	}
	return b.notify(fmt.Sprintf("Copied %s", r.ID))
}

func (b *Browser) refreshRemote() tea.Cmd {
	if b.source == nil {
		return b.notify("No market source configured")
	}
	source, limit := b.source, b.limit
	return b.run("refresh", "Prices refreshed", func(ctx context.Context) error {
		return b.store.SeedFromRemote(ctx, source, limit)
	})
}

func (b *Browser) quit() tea.Cmd {
	b.quitting = true
	return tea.Quit
}

// run executes fn off the update loop and reports through opDoneMsg.
func (b *Browser) run(op, result string, fn func(context.Context) error) tea.Cmd {
	b.pending = op
	ctx := b.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, result: result, err: fn(ctx)}
	}
}

func (b *Browser) notify(text string) tea.Cmd {
	b.notification = text
	if b.notifyFor <= 0 {
		return nil
	}
	return tea.Tick(b.notifyFor, func(time.Time) tea.Msg {
		return clearNotificationMsg{}
	})
}

func (b *Browser) refresh() {
	b.apply(b.store.Snapshot())
}

func (b *Browser) apply(s state.State) {
	b.snap = s
	b.list.SetFavorites(s.Favorites)
	b.list.SetItems(s.Filtered())
}

// SetSize sets the screen size.
func (b *Browser) SetSize(width, height int) {
	b.width = width
	b.height = height
	// title, tabs, header, status and key hint lines
	b.list.SetSize(width, max(height-5, 1))
}

// State returns the last applied snapshot.
func (b *Browser) State() state.State {
	return b.snap
}

// Mode returns the input mode.
func (b *Browser) Mode() vim.Mode {
	return b.modes.Current()
}

// List returns the currency list.
func (b *Browser) List() *components.CurrencyList {
	return b.list
}

// Notification returns the current notification message.
func (b *Browser) Notification() string {
	return b.notification
}

// Pending returns the name of the running background operation.
func (b *Browser) Pending() string {
	return b.pending
}

// Quitting reports whether quit was requested.
func (b *Browser) Quitting() bool {
	return b.quitting
}

// View implements tea.Model.
func (b *Browser) View() string {
	if b.quitting {
		return ""
	}

	width := b.width
	if width <= 0 {
		width = 80
	}

	sections := []string{
		b.styles.RenderTitle(b.title(), width),
		b.renderTabs(),
	}

	if b.showHelp {
		sections = append(sections, b.styles.RenderBorder(b.renderHelp(), width))
	} else {
		sections = append(sections, b.styles.Dim.Render(b.renderHeader(width)), b.renderBody())
	}

	sections = append(sections, b.renderStatus(width), b.styles.Dim.Render(b.renderHints()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (b *Browser) title() string {
	title := fmt.Sprintf("coinshelf · %s · %d items", b.snap.Mode.Label(), b.list.Len())
	if b.snap.Loading || b.pending != "" {
		title += " · loading"
	}
	return title
}

func (b *Browser) renderTabs() string {
	tabs := make([]string, 0, len(state.Modes()))
	for _, m := range state.Modes() {
		style := b.styles.Tab
		if m == b.snap.Mode {
			style = b.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(m.Label()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (b *Browser) renderHeader(width int) string {
	nameWidth := max(width-2-8-16-9-4, 8)
	return strings.Join([]string{
		tui.PadRight("", 2),
		tui.PadRight("SYMBOL", 8),
		tui.PadRight("NAME", nameWidth),
		tui.PadLeft("PRICE", 16),
		tui.PadLeft("24H", 9),
	}, " ")
}

func (b *Browser) renderBody() string {
	if b.list.Len() > 0 {
		return b.list.View()
	}
	switch {
	case b.snap.Query != "":
		return b.styles.Dim.Render(fmt.Sprintf("No matches for %q", b.snap.Query))
	case b.snap.Mode == state.ModeFavorites:
		return b.styles.Dim.Render("No favorites yet. Press f on a row to add one.")
	default:
		return b.styles.Dim.Render("No currencies. Press s to load sample data.")
	}
}

func (b *Browser) renderStatus(width int) string {
	parts := []string{fmt.Sprintf("[%s]", b.modes.Current())}

	switch b.modes.Current() {
	case vim.ModeSearch:
		parts = append(parts, "/"+b.modes.Input())
	case vim.ModeConfirm:
		parts = append(parts, "Clear all currencies? (y/N)")
	default:
		if b.snap.Query != "" {
			parts = append(parts, "/"+b.snap.Query)
		}
	}

	if b.notification != "" {
		parts = append(parts, b.notification)
	}

	line := tui.PadRight(strings.Join(parts, "  "), width)
	if b.snap.Err != nil && b.notification == "" {
		return b.styles.Error.Render(tui.Truncate("error: "+b.snap.Err.Error(), width))
	}
	return b.styles.Status.Render(line)
}

func (b *Browser) renderHints() string {
	if b.modes.IsSearch() {
		return "enter accept · esc clear"
	}
	return "tab mode · / search · f fav · y copy · s seed · X clear · ? help · q quit"
}

func (b *Browser) renderHelp() string {
	var sb strings.Builder
	for _, kb := range b.keys.Bindings(vim.ModeNormal) {
		fmt.Fprintf(&sb, "%s %s\n", tui.PadRight(kb.Label(), 10), kb.Help())
	}
	fmt.Fprintf(&sb, "%s %s", tui.PadRight("gg", 10), "first row")
	return sb.String()
}

func previousMode(m state.Mode) state.Mode {
	modes := state.Modes()
	for i, candidate := range modes {
		if candidate == m {
			return modes[(i+len(modes)-1)%len(modes)]
		}
	}
	return state.DefaultMode
}
