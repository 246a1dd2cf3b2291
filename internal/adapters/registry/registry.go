// Package registry is the in-memory player registry and match stats book,
// loadable from YAML files.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/roster"
)

// Registry holds the player pool.
type Registry struct {
	mu      sync.RWMutex
	players map[model.PlayerID]model.Player
}

var _ roster.Registry = (*Registry)(nil)

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[model.PlayerID]model.Player)}
}

// Put adds or replaces a player.
func (r *Registry) Put(p model.Player) error {
	switch {
	case p.ID == 0:
		return fmt.Errorf("%w: zero id", ErrInvalidPlayer)
	case !p.Position.Valid():
		return fmt.Errorf("%w: player %d has no position", ErrInvalidPlayer, p.ID)
	case p.Price < 0:
		return fmt.Errorf("%w: player %d has negative price", ErrInvalidPlayer, p.ID)
	}
	r.mu.Lock()
	r.players[p.ID] = p
	r.mu.Unlock()
	return nil
}

// Player implements roster.Registry.
func (r *Registry) Player(_ context.Context, id model.PlayerID) (model.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("%w: %d", roster.ErrUnknownPlayer, id)
	}
	return p, nil
}

// Players returns every player ordered by id.
func (r *Registry) Players() []model.Player {
	r.mu.RLock()
	out := make([]model.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Match is a search hit.
type Match struct {
	Player     model.Player `json:"player"`
	Similarity float64      `json:"similarity"`
}

// similarityThreshold is the minimum whole-name similarity for a
// non-substring match.
const similarityThreshold = 0.7

// Search finds players by name. Subsequence matches (e.g. "slah" for
// "Mohamed Salah") rank by Levenshtein distance; whole-name matches above
// the similarity threshold catch misspellings. Results are best first.
func (r *Registry) Search(query string, limit int) []Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Match
	for _, p := range r.players {
		name := strings.ToLower(p.Name)
		distance := fuzzy.LevenshteinDistance(query, name)
		similarity := 1 - float64(distance)/float64(max(len(query), len(name)))
		if fuzzy.MatchFold(query, name) || similarity > similarityThreshold {
			out = append(out, Match{Player: p, Similarity: similarity})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Player.ID < out[j].Player.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StatsBook holds match stats per period.
type StatsBook struct {
	mu      sync.RWMutex
	periods map[uint64]map[model.PlayerID]model.MatchStats
}

// NewStatsBook creates a new empty StatsBook.
func NewStatsBook() *StatsBook {
	return &StatsBook{periods: make(map[uint64]map[model.PlayerID]model.MatchStats)}
}

// Put records one player's stats for period.
func (b *StatsBook) Put(period uint64, id model.PlayerID, st model.MatchStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.periods[period]
	if !ok {
		m = make(map[model.PlayerID]model.MatchStats)
		b.periods[period] = m
	}
	m[id] = st
}

// Stats returns a copy of period's stats.
func (b *StatsBook) Stats(_ context.Context, period uint64) (map[model.PlayerID]model.MatchStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.periods[period]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoStats, period)
	}
	out := make(map[model.PlayerID]model.MatchStats, len(m))
	for id, st := range m {
		out[id] = st
	}
	return out, nil
}
