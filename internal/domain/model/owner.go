package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// OwnerLength is the byte width of an owner identity.
const OwnerLength = 20

// Owner is the fixed-width identity of a squad owner (an account address).
type Owner [OwnerLength]byte

// ParseOwner decodes a hex owner, with or without a 0x prefix.
func ParseOwner(s string) (Owner, error) {
	var o Owner
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != OwnerLength*2 {
		return o, fmt.Errorf("owner must be %d hex bytes, got %q", OwnerLength, s)
	}
	if _, err := hex.Decode(o[:], []byte(s)); err != nil {
		return o, fmt.Errorf("decode owner: %w", err)
	}
	return o, nil
}

// MustOwner is ParseOwner for constants and tests.
func MustOwner(s string) Owner {
	o, err := ParseOwner(s)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Owner) String() string {
	return "0x" + hex.EncodeToString(o[:])
}

// IsZero reports whether o is the zero identity.
func (o Owner) IsZero() bool {
	return o == Owner{}
}

// MarshalText implements encoding.TextMarshaler.
func (o Owner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Owner) UnmarshalText(b []byte) error {
	v, err := ParseOwner(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
