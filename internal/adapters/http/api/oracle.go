package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	oraclemem "github.com/okian/matchday/internal/adapters/oracle"
	"github.com/okian/matchday/internal/domain/merkle"
	"github.com/okian/matchday/internal/domain/oracle"
)

// OracleBoard is the answering side of the oracle.
type OracleBoard interface {
	Questions() []oraclemem.QuestionInfo
	Question(id oracle.QuestionID) (oraclemem.QuestionInfo, error)
	SubmitAnswer(ctx context.Context, id oracle.QuestionID, root merkle.Hash, bond uint64, answerer string) error
}

type answerRequest struct {
	Root     merkle.Hash `json:"root"`
	Bond     uint64      `json:"bond"`
	Answerer string      `json:"answerer"`
}

// OracleHandler lets reporters read questions and post bonded answers.
type OracleHandler struct {
	board OracleBoard
}

// NewOracleHandler creates a new OracleHandler.
func NewOracleHandler(board OracleBoard) *OracleHandler {
	return &OracleHandler{board: board}
}

// HandleList handles GET /oracle/questions.
func (h *OracleHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Questions())
}

// HandleGet handles GET /oracle/questions/{id}.
func (h *OracleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.board.Question(oracle.QuestionID(r.PathValue("id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// HandleAnswer handles POST /oracle/questions/{id}/answers.
func (h *OracleHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	id := oracle.QuestionID(r.PathValue("id"))
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if strings.TrimSpace(req.Answerer) == "" {
		writeDomainError(w, fmt.Errorf("%w: missing answerer", ErrBadRequest))
		return
	}
	if err := h.board.SubmitAnswer(r.Context(), id, req.Root, req.Bond, req.Answerer); err != nil {
		writeDomainError(w, err)
		return
	}
	q, err := h.board.Question(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}
