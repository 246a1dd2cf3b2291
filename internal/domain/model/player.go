// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Position is the closed set of playing positions.
type Position uint8

// Positions. The zero value is invalid so unset fields are caught early.
const (
	Goalkeeper Position = iota + 1
	Defender
	Midfielder
	Forward
)

// Positions lists every valid position in lineup order.
var Positions = [...]Position{Goalkeeper, Defender, Midfielder, Forward}

func (p Position) String() string {
	switch p {
	case Goalkeeper:
		return "goalkeeper"
	case Defender:
		return "defender"
	case Midfielder:
		return "midfielder"
	case Forward:
		return "forward"
	default:
		return fmt.Sprintf("position(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the four positions.
func (p Position) Valid() bool {
	return p >= Goalkeeper && p <= Forward
}

// ParsePosition accepts full names and the usual short codes (GK, DEF, MID, FWD).
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "goalkeeper", "gk", "gkp":
		return Goalkeeper, nil
	case "defender", "def", "d":
		return Defender, nil
	case "midfielder", "mid", "m":
		return Midfielder, nil
	case "forward", "fwd", "f":
		return Forward, nil
	}
	return 0, fmt.Errorf("unknown position %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Position) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid position %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Position) UnmarshalText(b []byte) error {
	v, err := ParsePosition(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PlayerID identifies a player in the external registry. Zero means "none".
type PlayerID uint32

// TeamID identifies a real-world club.
type TeamID uint32

// Player is a registry entity as seen by the ledger and the score engine.
type Player struct {
	ID       PlayerID
	Name     string
	Position Position
	TeamID   TeamID
	Price    int64 // price units (tenths of a million)
}
