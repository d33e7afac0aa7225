// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sessionauth

import "github.com/fischmanb/memduo-gate/internal/services/identity"

// Mode names the source a session was resolved from.
type Mode int

const (
	// ModeUnknown means resolution has not completed yet.
	ModeUnknown Mode = iota
	ModeNone
	ModeDemo
	ModeBearer
	ModeManaged
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDemo:
		return "demo"
	case ModeBearer:
		return "bearer"
	case ModeManaged:
		return "managed"
	default:
		return "unknown"
	}
}

// Session is the single observable identity state. Exactly one mode is
// authoritative at a time; the payload fields beyond Mode are only set for
// the modes that carry them.
type Session struct {
	Mode Mode

	// DemoEmail is set in demo mode.
	DemoEmail string

	// BearerToken is set in bearer mode.
	BearerToken string

	// Identity is set in bearer and managed mode.
	Identity *identity.Identity
}

// Authenticated reports whether any source is currently authoritative.
func (s Session) Authenticated() bool {
	switch s.Mode {
	case ModeDemo, ModeBearer, ModeManaged:
		return true
	default:
		return false
	}
}
