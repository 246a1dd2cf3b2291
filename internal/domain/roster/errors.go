package roster

import (
	"errors"
	"fmt"

	"github.com/okian/matchday/internal/domain/model"
)

// Validation errors. A call that returns one of these left the ledger untouched.
var (
	ErrNotFound            = errors.New("squad not found")
	ErrAlreadyExists       = errors.New("squad already exists")
	ErrSquadFull           = errors.New("squad is full")
	ErrInsufficientBudget  = errors.New("insufficient budget")
	ErrTeamLimitExceeded   = errors.New("team limit exceeded")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrDuplicatePlayer     = errors.New("player already in squad")
	ErrPlayerNotInSquad    = errors.New("player not in squad")
	ErrWildcardAlreadyUsed = errors.New("wildcard already used")
	ErrArity               = errors.New("wrong number of starters")
	ErrPositionQuota       = errors.New("position quota violated")
	ErrNotStarter          = errors.New("captain must be a starter")
	ErrDuplicateCaptain    = errors.New("captain and vice-captain must differ")
	ErrInvalidOwner        = errors.New("invalid owner")
)

// PositionQuotaError names the quota a lineup failed.
type PositionQuotaError struct {
	Position model.Position
	Got      int
	Min      int
	Max      int
}

func (e *PositionQuotaError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("%s: need exactly %d %s, got %d", ErrPositionQuota, e.Min, e.Position, e.Got)
	}
	return fmt.Sprintf("%s: need at least %d %s, got %d", ErrPositionQuota, e.Min, e.Position, e.Got)
}

// Is matches ErrPositionQuota.
func (e *PositionQuotaError) Is(target error) bool {
	return target == ErrPositionQuota
}
