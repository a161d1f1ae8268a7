package state

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which slice of the catalog the store shows.
type Mode string

const (
	ModeCrypto    Mode = "A"
	ModeFiat      Mode = "B"
	ModeAll       Mode = "ALL"
	ModeFavorites Mode = "FAVORITES"
)

// DefaultMode is used when no mode has been saved.
const DefaultMode = ModeCrypto

// ErrInvalidMode is returned for unknown modes.
var ErrInvalidMode = errors.New("invalid mode")

// Modes returns every mode in display order.
func Modes() []Mode {
	return []Mode{ModeCrypto, ModeFiat, ModeAll, ModeFavorites}
}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeCrypto, ModeFiat, ModeAll, ModeFavorites:
		return true
	}
	return false
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	modes := Modes()
	for i, candidate := range modes {
		if candidate == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return DefaultMode
}

// Label is the human-readable name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeCrypto:
		return "Crypto"
	case ModeFiat:
		return "Fiat"
	case ModeAll:
		return "All"
	case ModeFavorites:
		return "Favorites"
	}
	return string(m)
}

func (m Mode) String() string { return string(m) }
