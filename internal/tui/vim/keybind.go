package vim

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Binding maps one or more keys to an action. Keys use bubbletea's
// tea.KeyMsg.String names: "j", "G", "enter", "shift+tab", "ctrl+d".
type Binding struct {
	keys   []string
	help   string
	action func() tea.Cmd
}

// NewBinding creates a binding for keys.
func NewBinding(help string, action func() tea.Cmd, keys ...string) *Binding {
	return &Binding{keys: keys, help: help, action: action}
}

// Keys returns the bound keys.
func (b *Binding) Keys() []string {
	return b.keys
}

// Label joins the keys for display, e.g. "j/down".
func (b *Binding) Label() string {
	return strings.Join(b.keys, "/")
}

// Help returns what the binding does.
func (b *Binding) Help() string {
	return b.help
}

// Matches reports whether msg is one of the binding's keys.
func (b *Binding) Matches(msg tea.KeyMsg) bool {
	name := msg.String()
	for _, k := range b.keys {
		if k == name {
			return true
		}
	}
	return false
}

// Run invokes the action. A binding without one does nothing.
func (b *Binding) Run() tea.Cmd {
	if b.action == nil {
		return nil
	}
	return b.action()
}

// KeyMap holds bindings per mode.
type KeyMap struct {
	ordered map[Mode][]*Binding
	index   map[Mode]map[string]*Binding
}

// NewKeyMap creates an empty key map.
func NewKeyMap() *KeyMap {
	return &KeyMap{
		ordered: make(map[Mode][]*Binding),
		index:   make(map[Mode]map[string]*Binding),
	}
}

// Bind registers action for keys in mode. A key bound twice in the same mode
// resolves to the later binding.
func (km *KeyMap) Bind(mode Mode, help string, action func() tea.Cmd, keys ...string) {
	b := NewBinding(help, action, keys...)
	km.ordered[mode] = append(km.ordered[mode], b)

	idx, ok := km.index[mode]
	if !ok {
		idx = make(map[string]*Binding)
		km.index[mode] = idx
	}
	for _, k := range keys {
		idx[k] = b
	}
}

// Bindings returns the bindings of mode in registration order.
func (km *KeyMap) Bindings(mode Mode) []*Binding {
	return km.ordered[mode]
}

// Lookup returns the binding for msg in mode.
func (km *KeyMap) Lookup(mode Mode, msg tea.KeyMsg) (*Binding, bool) {
	b, ok := km.index[mode][msg.String()]
	return b, ok
}

// SequenceStatus is the outcome of feeding a key to Sequences.
type SequenceStatus int

const (
	SequencePending SequenceStatus = iota + 1
	SequenceComplete
	SequenceInvalid
)

// Sequences recognizes multi-key commands such as "gg".
type Sequences struct {
	actions map[string]func() tea.Cmd
	buffer  string
}

// NewSequences creates an empty sequence table.
func NewSequences() *Sequences {
	return &Sequences{actions: make(map[string]func() tea.Cmd)}
}

// Register adds a sequence.
func (s *Sequences) Register(sequence string, action func() tea.Cmd) {
	s.actions[sequence] = action
}

// Feed appends key to the buffer. On SequenceComplete the matched action is
// returned and the buffer is reset; on SequenceInvalid the buffer is dropped.
// An exact match that is also the prefix of a longer sequence stays pending.
func (s *Sequences) Feed(key string) (SequenceStatus, func() tea.Cmd) {
	s.buffer += key

	if s.extendable() {
		return SequencePending, nil
	}

	action, ok := s.actions[s.buffer]
	s.buffer = ""
	if !ok {
		return SequenceInvalid, nil
	}
	if action == nil {
		action = func() tea.Cmd { return nil }
	}
	return SequenceComplete, action
}

// extendable reports whether some longer sequence starts with the buffer.
func (s *Sequences) extendable() bool {
	for seq := range s.actions {
		if len(seq) > len(s.buffer) && strings.HasPrefix(seq, s.buffer) {
			return true
		}
	}
	return false
}

// Reset drops a partial sequence.
func (s *Sequences) Reset() {
	s.buffer = ""
}

// Buffer returns the keys typed so far.
func (s *Sequences) Buffer() string {
	return s.buffer
}

// Pending reports whether a sequence has been started.
func (s *Sequences) Pending() bool {
	return s.buffer != ""
}
