// Package format defines the canonical game formats and the ordered
// position names that make up a team for each format.  Every place
// that builds or validates team position slots consults this table
// instead of deriving positions at runtime.
package format

import "fmt"

// Format identifies a game format.  The value is stored verbatim in
// the bookings table.
type Format string

const (
	Singles Format = "SINGLES"
	Pairs   Format = "PAIRS"
	Triples Format = "TRIPLES"
	Fours   Format = "FOURS"
)

// Position names used across all formats.  Smaller formats use a
// suffix of the full Fours ordering, with SKIP always last.
const (
	Lead   = "LEAD"
	Second = "SECOND"
	Third  = "THIRD"
	Skip   = "SKIP"
)

// positions maps each format to its ordered position slots.
var positions = map[Format][]string{
	Singles: {Skip},
	Pairs:   {Lead, Skip},
	Triples: {Lead, Second, Skip},
	Fours:   {Lead, Second, Third, Skip},
}

// Valid reports whether f is a known format code.
func Valid(f Format) bool {
	_, ok := positions[f]
	return ok
}

// Positions returns the ordered position names for a format.  The
// returned slice is a copy; callers may modify it freely.
func Positions(f Format) ([]string, error) {
	p, ok := positions[f]
	if !ok {
		return nil, fmt.Errorf("unknown format %q", f)
	}
	out := make([]string, len(p))
	copy(out, p)
	return out, nil
}

// Size returns the number of players in a team for the format, or 0
// when the format is unknown.
func Size(f Format) int {
	return len(positions[f])
}

// HasPosition reports whether name is a valid position for the format.
func HasPosition(f Format, name string) bool {
	for _, p := range positions[f] {
		if p == name {
			return true
		}
	}
	return false
}
