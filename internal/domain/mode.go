package domain

import (
	"fmt"
	"strings"
)

// Mode selects where the listing set comes from.
type Mode int

const (
	ModeSimulation Mode = iota // Fixed local seed set, no external calls
	ModeLive                   // Backed by the external ledger
)

func (m Mode) String() string {
	switch m {
	case ModeSimulation:
		return "simulation"
	case ModeLive:
		return "live"
	default:
		return "unknown"
	}
}

// ParseMode accepts "simulation"/"mock" and "live".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulation", "mock", "":
		return ModeSimulation, nil
	case "live":
		return ModeLive, nil
	default:
		return ModeSimulation, fmt.Errorf("unknown mode: %q", s)
	}
}

// MarshalText lets Mode travel as a string in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
