package repository

import "errors"

// Sentinel kinds for standings errors.
var (
	ErrNotFound     = errors.New("squad not in standings")
	ErrInvalidLimit = errors.New("invalid standings limit")
)
