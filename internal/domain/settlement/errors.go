package settlement

import (
	"errors"
	"fmt"

	"github.com/okian/matchday/internal/domain/model"
)

var (
	ErrPhase          = errors.New("operation not allowed in current phase")
	ErrPeriodOrder    = errors.New("period out of order")
	ErrEmptyBatch     = errors.New("empty settlement batch")
	ErrLengthMismatch = errors.New("leaves and proofs differ in length")
	ErrNoQuestion     = errors.New("no oracle question for period")
	ErrOraclePending  = errors.New("oracle answer pending")
	ErrInvalidProof   = errors.New("invalid proof")
	ErrUnknownSquad   = errors.New("leaf names no squad")
	ErrScoreRange     = errors.New("score out of range")
)

// InvalidProofError reports the first leaf in a batch whose proof failed.
type InvalidProofError struct {
	Index int
	Owner model.Owner
}

func (e *InvalidProofError) Error() string {
	return fmt.Sprintf("%s: leaf %d (%s)", ErrInvalidProof, e.Index, e.Owner)
}

func (e *InvalidProofError) Unwrap() error {
	return ErrInvalidProof
}
