package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const defaultStandingsLimit = 10

// StandingsHandler serves the standings routes.
type StandingsHandler struct {
	deps     StandingsService
	maxLimit int
}

// NewStandingsHandler creates a new StandingsHandler. maxLimit caps the page size.
func NewStandingsHandler(deps StandingsService, maxLimit int) *StandingsHandler {
	return &StandingsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleTop handles GET /standings?limit=N.
func (h *StandingsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	n := min(defaultStandingsLimit, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeDomainError(w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, s))
			return
		}
		if v > h.maxLimit {
			writeDomainError(w, fmt.Errorf("%w: limit %d above %d", ErrLimitExceeded, v, h.maxLimit))
			return
		}
		n = v
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRank handles GET /standings/{owner}.
func (h *StandingsHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HandleSnapshot handles GET /standings/snapshot.
func (h *StandingsHandler) HandleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Snapshot())
}
