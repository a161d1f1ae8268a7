package vim

// Mode represents the current input mode of the browser.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeConfirm
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeSearch:
		return "SEARCH"
	case ModeConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

// ModeManager handles mode state, the search input buffer and count prefixes.
type ModeManager struct {
	current  Mode
	previous Mode
	input    []rune
	count    int
	hasCount bool
}

// NewModeManager creates a new mode manager starting in normal mode.
func NewModeManager() *ModeManager {
	return &ModeManager{
		current:  ModeNormal,
		previous: ModeNormal,
		count:    1,
	}
}

// Current returns the current mode.
func (m *ModeManager) Current() Mode {
	return m.current
}

// Previous returns the previous mode.
func (m *ModeManager) Previous() Mode {
	return m.previous
}

// SetMode changes the current mode. Entering a mode resets the count.
func (m *ModeManager) SetMode(mode Mode) {
	m.previous = m.current
	m.current = mode
	m.ResetCount()
}

// IsNormal returns true if in normal mode.
func (m *ModeManager) IsNormal() bool {
	return m.current == ModeNormal
}

// IsSearch returns true if in search mode.
func (m *ModeManager) IsSearch() bool {
	return m.current == ModeSearch
}

// Input returns the search buffer.
func (m *ModeManager) Input() string {
	return string(m.input)
}

// SetInput replaces the search buffer.
func (m *ModeManager) SetInput(s string) {
	m.input = []rune(s)
}

// AppendInput adds text to the search buffer.
func (m *ModeManager) AppendInput(s string) {
	m.input = append(m.input, []rune(s)...)
}

// Backspace removes the last rune from the search buffer.
func (m *ModeManager) Backspace() {
	if len(m.input) > 0 {
		m.input = m.input[:len(m.input)-1]
	}
}

// ClearInput empties the search buffer.
func (m *ModeManager) ClearInput() {
	m.input = nil
}

// Count returns the current count (default 1).
func (m *ModeManager) Count() int {
	return m.count
}

// AppendCount adds a digit to the count.
func (m *ModeManager) AppendCount(digit int) {
	if !m.hasCount {
		m.count = digit
		m.hasCount = true
	} else {
		m.count = m.count*10 + digit
	}
}

// ResetCount resets the count to default (1).
func (m *ModeManager) ResetCount() {
	m.count = 1
	m.hasCount = false
}

// HasCount returns true if a count was explicitly set.
func (m *ModeManager) HasCount() bool {
	return m.hasCount
}

// Reset resets all mode state to defaults.
func (m *ModeManager) Reset() {
	m.current = ModeNormal
	m.previous = ModeNormal
	m.input = nil
	m.ResetCount()
}
