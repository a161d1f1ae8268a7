package harness

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/artpar/coinshelf/internal/app"
	"github.com/artpar/coinshelf/internal/tui/views"
)

// TUIRunner provides TUI testing capabilities.
type TUIRunner struct {
	harness *E2EHarness
}

// TUISession drives a browser over a real application.
type TUISession struct {
	runner    *TUIRunner
	app       *app.App
	model     *views.Browser
	t         *testing.T
	clipboard []string
}

// Start opens the application and a browser of the default size.
func (r *TUIRunner) Start(t *testing.T) *TUISession {
	return r.StartWithSize(t, 120, 40)
}

// StartWithSize opens a session with custom dimensions.
func (r *TUIRunner) StartWithSize(t *testing.T, width, height int) *TUISession {
	t.Helper()

	ctx := context.Background()
	a, err := app.Open(ctx, r.harness.AppConfig())
	if err != nil {
		t.Fatalf("failed to open app: %v", err)
	}

	s := &TUISession{runner: r, app: a, t: t}
	s.model = views.NewBrowser(ctx, a.State(),
		views.WithSource(a.Market(), a.Config().Market.TopLimit),
		views.WithNotificationTimeout(0),
		views.WithClipboard(func(text string) error {
			s.clipboard = append(s.clipboard, text)
			return nil
		}),
	)
	s.model.SetSize(width, height)

	t.Cleanup(s.Quit)
	return s
}

// SendKey sends a key press and completes the work it starts.
func (s *TUISession) SendKey(key string) *TUISession {
	s.update(parseKeyMsg(key))
	return s
}

// SendKeys sends multiple key presses.
func (s *TUISession) SendKeys(keys ...string) *TUISession {
	for _, key := range keys {
		s.SendKey(key)
	}
	return s
}

// Type sends a sequence of rune keys.
func (s *TUISession) Type(text string) *TUISession {
	for _, r := range text {
		s.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return s
}

// update feeds msg to the model and runs the command it returns once.
// Notifications do not expire in a session, so the command is always a
// store operation or nil.
func (s *TUISession) update(msg tea.Msg) {
	_, cmd := s.model.Update(msg)
	if cmd == nil {
		return
	}
	if next := cmd(); next != nil {
		s.model.Update(next)
	}
}

// WaitForOutput waits for specific text in output.
func (s *TUISession) WaitForOutput(text string) error {
	timeout := s.runner.harness.timeout
	deadline := time.Now().Add(timeout)
	pollInterval := 50 * time.Millisecond

	for time.Now().Before(deadline) {
		if strings.Contains(s.Output(), text) {
			return nil
		}
		time.Sleep(pollInterval)
	}

	return &TimeoutError{text: text, timeout: timeout}
}

// Output returns the current screen.
func (s *TUISession) Output() string {
	return s.model.View()
}

// Quit closes the application. It is safe to call more than once.
func (s *TUISession) Quit() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

// Model returns the underlying browser for direct assertions.
func (s *TUISession) Model() *views.Browser {
	return s.model
}

// App returns the application behind the session.
func (s *TUISession) App() *app.App {
	return s.app
}

// Clipboard returns everything copied so far.
func (s *TUISession) Clipboard() []string {
	return s.clipboard
}

// SelectedID returns the id under the cursor, or "".
func (s *TUISession) SelectedID() string {
	r, ok := s.model.List().Selected()
	if !ok {
		return ""
	}
	return r.ID
}

// TimeoutError represents a timeout waiting for output.
type TimeoutError struct {
	text    string
	timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return "timeout after " + e.timeout.String() + " waiting for: " + e.text
}

// parseKeyMsg converts key string to tea.KeyMsg.
func parseKeyMsg(key string) tea.KeyMsg {
	switch strings.ToLower(key) {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "esc", "escape":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}
