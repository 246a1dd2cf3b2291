package oracle

import "errors"

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrFinalized       = errors.New("question already finalized")
	ErrBondTooLow      = errors.New("bond too low")
	ErrInvalidTimeout  = errors.New("timeout must be positive")
	ErrInvalidMinBond  = errors.New("minimum bond must be positive")
	ErrEmptyAnswer     = errors.New("answer must be a non-zero root")
)
