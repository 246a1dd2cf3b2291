package merkle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/okian/matchday/internal/domain/model"
)

// HashSize is the digest width in bytes.
const HashSize = 32

// Hash is a keccak256 digest.
type Hash [HashSize]byte

// ParseHash decodes a 0x-prefixed (or bare) 64 digit hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("%w: want %d hex digits, got %d", ErrInvalidHash, 2*HashSize, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is all zero bytes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// less orders digests as big-endian unsigned integers.
func less(a, b Hash) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// LeafHash returns keccak256(owner ‖ uint256_be(score)), the same bytes
// Solidity produces for abi.encodePacked(address, uint256).
func LeafHash(leaf model.ScoreLeaf) Hash {
	var score [32]byte
	binary.BigEndian.PutUint64(score[24:], leaf.Score)

	d := sha3.NewLegacyKeccak256()
	d.Write(leaf.Owner[:])
	d.Write(score[:])

	var h Hash
	d.Sum(h[:0])
	return h
}

// hashPair combines two digests with the smaller one first, so the result
// does not depend on which side of the tree each came from.
func hashPair(a, b Hash) Hash {
	if less(b, a) {
		a, b = b, a
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(a[:])
	d.Write(b[:])

	var h Hash
	d.Sum(h[:0])
	return h
}
