package merkle

import "errors"

var (
	ErrEmptyLeafSet   = errors.New("empty leaf set")
	ErrDuplicateLeaf  = errors.New("duplicate leaf owner")
	ErrLeafNotFound   = errors.New("leaf not in commitment")
	ErrInvalidHash    = errors.New("invalid hash")
	ErrLengthMismatch = errors.New("leaves and proofs differ in length")
)
