package simulate

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/okian/matchday/internal/domain/model"
)

func testPool() []Player {
	var pool []Player
	for id := model.PlayerID(1); id <= 30; id++ {
		pos := model.Forward
		switch {
		case id <= 4:
			pos = model.Goalkeeper
		case id <= 14:
			pos = model.Defender
		case id <= 24:
			pos = model.Midfielder
		}
		pool = append(pool, Player{ID: id, Position: pos, TeamID: model.TeamID((id-1)%10 + 1), Price: 60})
	}
	return pool
}

func TestGenerateOwnersDistinct(t *testing.T) {
	owners := generateOwners(rand.New(rand.NewPCG(1, 2)), 50)
	if len(owners) != 50 {
		t.Fatalf("got %d owners", len(owners))
	}
	seen := make(map[model.Owner]bool)
	for _, o := range owners {
		if o.IsZero() || seen[o] {
			t.Fatalf("bad owner %s", o)
		}
		seen[o] = true
	}
}

func TestGenerateOwnersDeterministic(t *testing.T) {
	a := generateOwners(rand.New(rand.NewPCG(7, 7)), 3)
	b := generateOwners(rand.New(rand.NewPCG(7, 7)), 3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("owner %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestGeneratePlanShape(t *testing.T) {
	pool := testPool()
	byID := make(map[model.PlayerID]Player, len(pool))
	for _, p := range pool {
		byID[p.ID] = p
	}

	plan, err := generatePlan(rand.New(rand.NewPCG(3, 4)), model.Owner{1}, pool, DefaultLimits())
	if err != nil {
		t.Fatalf("generatePlan: %v", err)
	}
	if len(plan.Players) != 15 || len(plan.Starters) != 11 {
		t.Fatalf("got %d players, %d starters", len(plan.Players), len(plan.Starters))
	}

	counts := make(map[model.Position]int)
	teams := make(map[model.TeamID]int)
	var spent int64
	for _, id := range plan.Players {
		p := byID[id]
		counts[p.Position]++
		teams[p.TeamID]++
		spent += p.Price
	}
	for pos, want := range squadShape {
		if counts[pos] != want {
			t.Errorf("%s: got %d, want %d", pos, counts[pos], want)
		}
	}
	for team, n := range teams {
		if n > 3 {
			t.Errorf("team %d has %d players", team, n)
		}
	}
	if spent > 1000 {
		t.Errorf("spent %d", spent)
	}

	starters := make(map[model.PlayerID]bool)
	for _, id := range plan.Starters {
		starters[id] = true
	}
	if !starters[plan.Captain] || byID[plan.Captain].Position != model.Forward {
		t.Errorf("captain %d is not a starting forward", plan.Captain)
	}
	if !starters[plan.Vice] || byID[plan.Vice].Position != model.Midfielder {
		t.Errorf("vice %d is not a starting midfielder", plan.Vice)
	}
}

func TestGeneratePlanBudget(t *testing.T) {
	_, err := generatePlan(rand.New(rand.NewPCG(1, 1)), model.Owner{1}, testPool(), Limits{Budget: 500, TeamLimit: 3})
	if !errors.Is(err, ErrNoSquad) {
		t.Fatalf("got %v, want ErrNoSquad", err)
	}
}

func TestCheckOrder(t *testing.T) {
	ok := []Entry{{Rank: 1, Points: 20}, {Rank: 1, Points: 20}, {Rank: 3, Points: 9}}
	if err := checkOrder(ok); err != nil {
		t.Fatalf("checkOrder: %v", err)
	}
	for name, bad := range map[string][]Entry{
		"unsorted": {{Rank: 1, Points: 5}, {Rank: 2, Points: 9}},
		"dense":    {{Rank: 1, Points: 20}, {Rank: 1, Points: 20}, {Rank: 2, Points: 9}},
		"leader":   {{Rank: 2, Points: 20}},
	} {
		if err := checkOrder(bad); !errors.Is(err, ErrMismatch) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}
