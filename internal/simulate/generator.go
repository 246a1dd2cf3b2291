package simulate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/okian/matchday/internal/domain/model"
)

// ErrNoSquad means the player pool cannot fill a squad within the limits.
var ErrNoSquad = errors.New("cannot build squad from player pool")

// Squad composition and the 1-4-4-2 starting shape the generator uses.
var (
	squadShape  = map[model.Position]int{model.Goalkeeper: 2, model.Defender: 5, model.Midfielder: 5, model.Forward: 3}
	lineupShape = map[model.Position]int{model.Goalkeeper: 1, model.Defender: 4, model.Midfielder: 4, model.Forward: 2}
)

// Limits mirrors the server's default roster limits.
type Limits struct {
	Budget    int64
	TeamLimit int
}

// DefaultLimits matches the service defaults.
func DefaultLimits() Limits {
	return Limits{Budget: 1000, TeamLimit: 3}
}

// Plan is one generated squad.
type Plan struct {
	Owner    model.Owner
	Players  []model.PlayerID
	Starters []model.PlayerID
	Captain  model.PlayerID
	Vice     model.PlayerID
}

// generateOwners returns n distinct owners derived from rng.
func generateOwners(rng *rand.Rand, n int) []model.Owner {
	seen := make(map[model.Owner]struct{}, n)
	out := make([]model.Owner, 0, n)
	for len(out) < n {
		var o model.Owner
		binary.BigEndian.PutUint32(o[:4], rng.Uint32())
		binary.BigEndian.PutUint64(o[4:12], rng.Uint64())
		binary.BigEndian.PutUint64(o[12:], rng.Uint64())
		if o.IsZero() {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// generatePlan picks a valid squad for owner. Players are drawn cheapest
// first within each position after a shuffle, so ties are broken randomly
// while the budget stays reachable.
func generatePlan(rng *rand.Rand, owner model.Owner, pool []Player, lim Limits) (Plan, error) {
	byPos := make(map[model.Position][]Player, len(squadShape))
	for _, p := range pool {
		byPos[p.Position] = append(byPos[p.Position], p)
	}

	var (
		picked = make(map[model.Position][]Player, len(squadShape))
		teams  = make(map[model.TeamID]int)
		spent  int64
	)
	for _, pos := range model.Positions {
		cands := append([]Player(nil), byPos[pos]...)
		rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].Price < cands[j].Price })
		for _, p := range cands {
			if len(picked[pos]) == squadShape[pos] {
				break
			}
			if teams[p.TeamID] >= lim.TeamLimit || spent+p.Price > lim.Budget {
				continue
			}
			picked[pos] = append(picked[pos], p)
			teams[p.TeamID]++
			spent += p.Price
		}
		if len(picked[pos]) < squadShape[pos] {
			return Plan{}, fmt.Errorf("%w: %d of %d %s", ErrNoSquad, len(picked[pos]), squadShape[pos], pos)
		}
	}

	plan := Plan{Owner: owner}
	for _, pos := range model.Positions {
		for i, p := range picked[pos] {
			plan.Players = append(plan.Players, p.ID)
			if i < lineupShape[pos] {
				plan.Starters = append(plan.Starters, p.ID)
			}
		}
	}
	fwd, mid := picked[model.Forward], picked[model.Midfielder]
	plan.Captain = fwd[rng.IntN(lineupShape[model.Forward])].ID
	plan.Vice = mid[rng.IntN(lineupShape[model.Midfielder])].ID
	return plan, nil
}
