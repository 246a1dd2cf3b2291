package registry

import "errors"

var (
	ErrInvalidPlayer = errors.New("invalid player")
	ErrNoStats       = errors.New("no stats for period")
	ErrLoad          = errors.New("load registry data")
)
