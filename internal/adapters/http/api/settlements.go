package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/settlement"
)

type settlementRequest struct {
	Leaves []model.ScoreLeaf `json:"leaves"`
	Proofs []merkle.Proof    `json:"proofs"`
}

type settlementResponse struct {
	Period  uint64 `json:"period"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
}

type submissionAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type rejectionResponse struct {
	errorResponse
	Index *int         `json:"index,omitempty"`
	Owner *model.Owner `json:"owner,omitempty"`
}

// SettlementHandler accepts score batches.
type SettlementHandler struct {
	deps SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(deps SettlementService) *SettlementHandler {
	return &SettlementHandler{deps: deps}
}

// HandleApply handles POST /periods/{period}/settlements. With ?async=true
// the batch is queued and 202 returns its submission id.
func (h *SettlementHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req settlementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		async, err = strconv.ParseBool(v)
		if err != nil {
			writeDomainError(w, fmt.Errorf("%w: invalid async flag %q", ErrBadRequest, v))
			return
		}
	}

	if async {
		id, err := h.deps.SubmitScores(r.Context(), p, req.Leaves, req.Proofs)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Location", "/submissions/"+id)
		writeJSON(w, http.StatusAccepted, submissionAck{ID: id, Status: "queued"})
		return
	}

	out, err := h.deps.ApplyScores(r.Context(), p, req.Leaves, req.Proofs)
	if err != nil {
		var ipe *settlement.InvalidProofError
		if errors.As(err, &ipe) {
			status, code := classify(err)
			writeJSON(w, status, rejectionResponse{
				errorResponse: errorResponse{Code: code, Message: err.Error()},
				Index:         &ipe.Index,
				Owner:         &ipe.Owner,
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse{Period: p, Applied: out.Applied, Skipped: out.Skipped})
}

// HandleSubmission handles GET /submissions/{id}.
func (h *SettlementHandler) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	res, ok := h.deps.Submission(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_submission", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
