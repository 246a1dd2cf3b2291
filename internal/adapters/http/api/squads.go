package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/okian/matchday/internal/domain/model"
)

type slotView struct {
	PlayerID model.PlayerID `json:"player_id"`
	Position model.Position `json:"position"`
	TeamID   model.TeamID   `json:"team_id"`
	Price    int64          `json:"price"`
	Starter  bool           `json:"starter"`
}

type periodPoints struct {
	Period uint64 `json:"period"`
	Points int64  `json:"points"`
}

// squadView is the JSON shape of a squad.
type squadView struct {
	Owner         model.Owner      `json:"owner"`
	Slots         []slotView       `json:"slots"`
	Budget        int64            `json:"budget"`
	TotalPoints   int64            `json:"total_points"`
	FreeTransfers int              `json:"free_transfers"`
	WildcardUsed  bool             `json:"wildcard_used"`
	Captain       model.PlayerID   `json:"captain,omitempty"`
	ViceCaptain   model.PlayerID   `json:"vice_captain,omitempty"`
	JoinedPeriod  uint64           `json:"joined_period"`
	Starters      []model.PlayerID `json:"starters"`
	History       []periodPoints   `json:"history"`
}

func newSquadView(sq *model.Squad) squadView {
	v := squadView{
		Owner:         sq.Owner,
		Slots:         make([]slotView, 0, len(sq.Slots)),
		Budget:        sq.Budget,
		TotalPoints:   sq.TotalPoints,
		FreeTransfers: sq.FreeTransfers,
		WildcardUsed:  sq.WildcardUsed,
		Captain:       sq.Captain,
		ViceCaptain:   sq.ViceCaptain,
		JoinedPeriod:  sq.JoinedPeriod,
		Starters:      []model.PlayerID{},
		History:       make([]periodPoints, 0, len(sq.PeriodPoints)),
	}
	for _, sl := range sq.Slots {
		v.Slots = append(v.Slots, slotView(sl))
	}
	for _, sl := range sq.Starters() {
		v.Starters = append(v.Starters, sl.PlayerID)
	}
	for p, pts := range sq.PeriodPoints {
		v.History = append(v.History, periodPoints{Period: p, Points: pts})
	}
	sort.Slice(v.History, func(i, j int) bool { return v.History[i].Period < v.History[j].Period })
	return v
}

type createSquadRequest struct {
	Owner model.Owner `json:"owner"`
}

type addPlayerRequest struct {
	PlayerID model.PlayerID `json:"player_id"`
}

type transferRequest struct {
	Out model.PlayerID `json:"out"`
	In  model.PlayerID `json:"in"`
}

type lineupRequest struct {
	Starters []model.PlayerID `json:"starters"`
}

type captainRequest struct {
	Captain     model.PlayerID `json:"captain"`
	ViceCaptain model.PlayerID `json:"vice_captain"`
}

// SquadHandler serves the roster ledger routes.
type SquadHandler struct {
	deps SquadService
}

// NewSquadHandler creates a new SquadHandler.
func NewSquadHandler(deps SquadService) *SquadHandler {
	return &SquadHandler{deps: deps}
}

// HandleCreate handles POST /squads.
func (h *SquadHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSquadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.CreateSquad(r.Context(), req.Owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSquadView(sq))
}

// HandleGet handles GET /squads/{owner}.
func (h *SquadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.Squad(r.Context(), owner)
	h.respond(w, sq, err)
}

// HandleAddPlayer handles POST /squads/{owner}/players.
func (h *SquadHandler) HandleAddPlayer(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req addPlayerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.PlayerID == 0 {
		writeDomainError(w, fmt.Errorf("%w: missing player_id", ErrBadRequest))
		return
	}
	sq, err := h.deps.AddPlayer(r.Context(), owner, req.PlayerID)
	h.respond(w, sq, err)
}

// HandleRemovePlayer handles DELETE /squads/{owner}/players/{player}.
func (h *SquadHandler) HandleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := pathPlayer(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.RemovePlayer(r.Context(), owner, id)
	h.respond(w, sq, err)
}

// HandleTransfer handles POST /squads/{owner}/transfers.
func (h *SquadHandler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Out == 0 || req.In == 0 {
		writeDomainError(w, fmt.Errorf("%w: transfer needs both out and in", ErrBadRequest))
		return
	}
	sq, err := h.deps.Transfer(r.Context(), owner, req.Out, req.In)
	h.respond(w, sq, err)
}

// HandleWildcard handles POST /squads/{owner}/wildcard.
func (h *SquadHandler) HandleWildcard(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.UseWildcard(r.Context(), owner)
	h.respond(w, sq, err)
}

// HandleLineup handles PUT /squads/{owner}/lineup.
func (h *SquadHandler) HandleLineup(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req lineupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.SetLineup(r.Context(), owner, req.Starters)
	h.respond(w, sq, err)
}

// HandleCaptain handles PUT /squads/{owner}/captain.
func (h *SquadHandler) HandleCaptain(w http.ResponseWriter, r *http.Request) {
	owner, err := pathOwner(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req captainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sq, err := h.deps.SetCaptain(r.Context(), owner, req.Captain, req.ViceCaptain)
	h.respond(w, sq, err)
}

func (h *SquadHandler) respond(w http.ResponseWriter, sq *model.Squad, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSquadView(sq))
}
