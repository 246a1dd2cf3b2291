package api

import (
	"net/http"

	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/model"
)

type commitmentResponse struct {
	Period uint64            `json:"period"`
	Root   merkle.Hash       `json:"root"`
	Count  int               `json:"count"`
	Leaves []model.ScoreLeaf `json:"leaves"`
}

type proofResponse struct {
	Period uint64          `json:"period"`
	Root   merkle.Hash     `json:"root"`
	Leaf   model.ScoreLeaf `json:"leaf"`
	Proof  merkle.Proof    `json:"proof"`
}

// CommitmentHandler builds commitments and serves inclusion proofs.
type CommitmentHandler struct {
	deps CommitmentService
}

// NewCommitmentHandler creates a new CommitmentHandler.
func NewCommitmentHandler(deps CommitmentService) *CommitmentHandler {
	return &CommitmentHandler{deps: deps}
}

// HandleBuild handles POST /periods/{period}/commitment.
func (h *CommitmentHandler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.BuildCommitment(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommitmentResponse(p, c))
}

// HandleGet handles GET /periods/{period}/commitment.
func (h *CommitmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.Commitment(p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommitmentResponse(p, c))
}

// HandleProof handles GET /periods/{period}/proofs/{owner}.
func (h *CommitmentHandler) HandleProof(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.Commitment(p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	leaf, proof, err := h.deps.Proof(p, owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if proof == nil {
		proof = merkle.Proof{}
	}
	writeJSON(w, http.StatusOK, proofResponse{Period: p, Root: c.Root(), Leaf: leaf, Proof: proof})
}

func newCommitmentResponse(p uint64, c *merkle.Commitment) commitmentResponse {
	return commitmentResponse{Period: p, Root: c.Root(), Count: c.Len(), Leaves: c.Leaves()}
}
