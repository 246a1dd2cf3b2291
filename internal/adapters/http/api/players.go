package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/matchday/internal/adapters/registry"
	"github.com/okian/matchday/internal/domain/model"
)

// PlayerSearch lists and finds registry players.
type PlayerSearch interface {
	Search(query string, limit int) []registry.Match
	Players() []model.Player
}

type playerView struct {
	ID         model.PlayerID `json:"id"`
	Name       string         `json:"name"`
	Position   model.Position `json:"position"`
	TeamID     model.TeamID   `json:"team_id"`
	Price      int64          `json:"price"`
	Similarity float64        `json:"similarity"`
}

// PlayersHandler serves player search.
type PlayersHandler struct {
	players PlayerSearch
}

// NewPlayersHandler creates a new PlayersHandler.
func NewPlayersHandler(players PlayerSearch) *PlayersHandler {
	return &PlayersHandler{players: players}
}

// HandleSearch handles GET /players?q=name&limit=N. Without q it lists the
// registry in id order.
func (h *PlayersHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeDomainError(w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, s))
			return
		}
		limit = v
	}

	var matches []registry.Match
	if q == "" {
		for _, p := range h.players.Players() {
			matches = append(matches, registry.Match{Player: p, Similarity: 1})
		}
		if limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}
	} else {
		matches = h.players.Search(q, limit)
	}
	out := make([]playerView, 0, len(matches))
	for _, m := range matches {
		out = append(out, playerView{
			ID:         m.Player.ID,
			Name:       m.Player.Name,
			Position:   m.Player.Position,
			TeamID:     m.Player.TeamID,
			Price:      m.Player.Price,
			Similarity: m.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
