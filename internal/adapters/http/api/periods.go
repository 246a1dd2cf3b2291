package api

import (
	"net/http"

	"github.com/okian/matchday/internal/domain/settlement"
)

type stateResponse struct {
	Phase  settlement.Phase `json:"phase"`
	Period uint64           `json:"period"`
}

// PeriodHandler serves the settlement lifecycle routes.
type PeriodHandler struct {
	deps PeriodService
}

// NewPeriodHandler creates a new PeriodHandler.
func NewPeriodHandler(deps PeriodService) *PeriodHandler {
	return &PeriodHandler{deps: deps}
}

// HandleState handles GET /state.
func (h *PeriodHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	phase, p := h.deps.State()
	writeJSON(w, http.StatusOK, stateResponse{Phase: phase, Period: p})
}

// HandleStart handles POST /periods/{period}/start.
func (h *PeriodHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.StartPeriod(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	h.HandleState(w, r)
}

// HandleEnd handles POST /periods/{period}/end.
func (h *PeriodHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	p, err := pathPeriod(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.EndPeriod(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	h.HandleState(w, r)
}
