package api

import (
	"errors"
	"net/http"

	oraclemem "github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/adapters/registry"
	"github.com/okian/matchday/internal/adapters/repository"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/oracle"
	"github.com/okian/matchday/internal/domain/roster"
	"github.com/okian/matchday/internal/domain/settlement"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeded")
)

type errorKind struct {
	target error
	status int
	code   string
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []errorKind{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{ErrLimitExceeded, http.StatusBadRequest, "limit_exceeded"},

	{roster.ErrNotFound, http.StatusNotFound, "squad_not_found"},
	{repository.ErrNotFound, http.StatusNotFound, "not_ranked"},
	{service.ErrNoCommitment, http.StatusNotFound, "no_commitment"},
	{merkle.ErrLeafNotFound, http.StatusNotFound, "leaf_not_found"},
	{registry.ErrNoStats, http.StatusNotFound, "no_stats"},
	{oraclemem.ErrUnknownQuestion, http.StatusNotFound, "unknown_question"},

	{roster.ErrAlreadyExists, http.StatusConflict, "squad_exists"},
	{settlement.ErrPhase, http.StatusConflict, "wrong_phase"},
	{settlement.ErrPeriodOrder, http.StatusConflict, "period_order"},
	{settlement.ErrNoQuestion, http.StatusConflict, "no_question"},
	{settlement.ErrOraclePending, http.StatusConflict, "oracle_pending"},
	{oracle.ErrOneQuestionPerPeriod, http.StatusConflict, "question_exists"},
	{oraclemem.ErrFinalized, http.StatusConflict, "finalized"},
	{service.ErrCommitmentSealed, http.StatusConflict, "commitment_sealed"},

	{settlement.ErrInvalidProof, http.StatusUnprocessableEntity, "invalid_proof"},
	{settlement.ErrUnknownSquad, http.StatusUnprocessableEntity, "unknown_squad"},
	{settlement.ErrEmptyBatch, http.StatusBadRequest, "empty_batch"},
	{settlement.ErrLengthMismatch, http.StatusBadRequest, "length_mismatch"},
	{settlement.ErrScoreRange, http.StatusUnprocessableEntity, "score_range"},
	{merkle.ErrEmptyLeafSet, http.StatusUnprocessableEntity, "empty_leaf_set"},
	{oraclemem.ErrBondTooLow, http.StatusUnprocessableEntity, "bond_too_low"},
	{oraclemem.ErrEmptyAnswer, http.StatusBadRequest, "empty_answer"},

	{roster.ErrInvalidOwner, http.StatusBadRequest, "invalid_owner"},
	{roster.ErrUnknownPlayer, http.StatusUnprocessableEntity, "unknown_player"},
	{roster.ErrSquadFull, http.StatusUnprocessableEntity, "squad_full"},
	{roster.ErrInsufficientBudget, http.StatusUnprocessableEntity, "insufficient_budget"},
	{roster.ErrTeamLimitExceeded, http.StatusUnprocessableEntity, "team_limit"},
	{roster.ErrDuplicatePlayer, http.StatusUnprocessableEntity, "duplicate_player"},
	{roster.ErrPlayerNotInSquad, http.StatusUnprocessableEntity, "player_not_in_squad"},
	{roster.ErrWildcardAlreadyUsed, http.StatusUnprocessableEntity, "wildcard_used"},
	{roster.ErrArity, http.StatusUnprocessableEntity, "lineup_size"},
	{roster.ErrPositionQuota, http.StatusUnprocessableEntity, "position_quota"},
	{roster.ErrNotStarter, http.StatusUnprocessableEntity, "captain_not_starter"},
	{roster.ErrDuplicateCaptain, http.StatusUnprocessableEntity, "duplicate_captain"},

	{service.ErrQueueFull, http.StatusTooManyRequests, "backpressure"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "not_started"},
}

func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
