// Package roster owns squad state: composition, budget, transfers, lineup
// and captaincy, plus the points credited by settlement.
//
// Every mutation runs on a private copy of the squad and is swapped in only
// when it succeeds, so a rejected call leaves the ledger exactly as it was.
package roster

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
)

// LineupSize is the number of starters a lineup must name.
const LineupSize = 11

// Registry resolves players. Implementations return ErrUnknownPlayer
// (possibly wrapped) for ids they do not know.
type Registry interface {
	Player(ctx context.Context, id model.PlayerID) (model.Player, error)
}

// Limits are the squad rules applied by the ledger.
type Limits struct {
	Budget           int64 `koanf:"budget"`
	SquadSize        int   `koanf:"squad_size"`
	TeamLimit        int   `koanf:"team_limit"`
	MaxFreeTransfers int   `koanf:"max_free_transfers"`
	TransferCost     int64 `koanf:"transfer_cost"`
}

// DefaultLimits returns the standard squad rules.
func DefaultLimits() Limits {
	return Limits{
		Budget:           1000,
		SquadSize:        15,
		TeamLimit:        3,
		MaxFreeTransfers: 2,
		TransferCost:     4,
	}
}

// PointsObserver is notified after a squad's total points change.
type PointsObserver func(ctx context.Context, owner model.Owner, total int64)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithLimits overrides the squad rules. Non-positive sizes keep the defaults.
func WithLimits(lim Limits) Option {
	return func(l *Ledger) {
		if lim.SquadSize > 0 {
			l.limits.SquadSize = lim.SquadSize
		}
		if lim.TeamLimit > 0 {
			l.limits.TeamLimit = lim.TeamLimit
		}
		if lim.Budget >= 0 {
			l.limits.Budget = lim.Budget
		}
		if lim.MaxFreeTransfers >= 0 {
			l.limits.MaxFreeTransfers = lim.MaxFreeTransfers
		}
		if lim.TransferCost >= 0 {
			l.limits.TransferCost = lim.TransferCost
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithPointsObserver registers a callback for total-points changes.
func WithPointsObserver(fn PointsObserver) Option {
	return func(l *Ledger) {
		l.observer = fn
	}
}

// Ledger is the keyed squad store. All mutations are serialized.
type Ledger struct {
	mu       sync.Mutex
	squads   map[model.Owner]*model.Squad
	registry Registry
	limits   Limits
	observer PointsObserver
	logger   logger.Logger
}

// NewLedger creates an empty ledger backed by registry.
func NewLedger(registry Registry, opts ...Option) *Ledger {
	l := &Ledger{
		squads:   make(map[model.Owner]*model.Squad),
		registry: registry,
		limits:   DefaultLimits(),
		logger:   logger.OrNop().Named("roster"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the squad rules in force.
func (l *Ledger) Limits() Limits {
	return l.limits
}

// Create registers a new squad for owner, joined in period.
func (l *Ledger) Create(ctx context.Context, owner model.Owner, period uint64) error {
	const op = "create"
	if owner.IsZero() {
		metrics.RecordLedgerOperation(op, "rejected")
		return fmt.Errorf("%s: %w", op, ErrInvalidOwner)
	}

	l.mu.Lock()
	if _, ok := l.squads[owner]; ok {
		l.mu.Unlock()
		metrics.RecordLedgerOperation(op, "rejected")
		return fmt.Errorf("%s %s: %w", op, owner, ErrAlreadyExists)
	}
	l.squads[owner] = &model.Squad{
		Owner:         owner,
		Budget:        l.limits.Budget,
		FreeTransfers: l.limits.MaxFreeTransfers,
		JoinedPeriod:  period,
		PeriodPoints:  make(map[uint64]int64),
	}
	n := len(l.squads)
	l.mu.Unlock()

	metrics.RecordLedgerOperation(op, "ok")
	metrics.UpdateActiveSquads(n)
	l.logger.Info(ctx, "squad created", logger.String("owner", owner.String()), logger.Uint64("period", period))
	return nil
}

// AddSlot buys a player into the squad.
func (l *Ledger) AddSlot(ctx context.Context, owner model.Owner, id model.PlayerID) error {
	p, err := l.registry.Player(ctx, id)
	if err != nil {
		metrics.RecordLedgerOperation("add_slot", "rejected")
		return fmt.Errorf("add_slot %s: %w", owner, err)
	}
	_, err = l.mutate(ctx, "add_slot", owner, func(sq *model.Squad) error {
		return l.addSlot(sq, p)
	})
	return err
}

// RemoveSlot sells a player, refunding the price paid.
func (l *Ledger) RemoveSlot(ctx context.Context, owner model.Owner, id model.PlayerID) error {
	_, err := l.mutate(ctx, "remove_slot", owner, func(sq *model.Squad) error {
		return removeSlot(sq, id)
	})
	return err
}

// Transfer swaps out for in. One free transfer is consumed when available,
// otherwise the transfer cost is taken from total points with no floor.
func (l *Ledger) Transfer(ctx context.Context, owner model.Owner, out, in model.PlayerID) error {
	p, err := l.registry.Player(ctx, in)
	if err != nil {
		metrics.RecordLedgerOperation("transfer", "rejected")
		return fmt.Errorf("transfer %s: %w", owner, err)
	}
	var penalized bool
	sq, err := l.mutate(ctx, "transfer", owner, func(sq *model.Squad) error {
		if err := removeSlot(sq, out); err != nil {
			return err
		}
		if err := l.addSlot(sq, p); err != nil {
			return err
		}
		if sq.FreeTransfers > 0 {
			sq.FreeTransfers--
			return nil
		}
		sq.TotalPoints -= l.limits.TransferCost
		penalized = true
		return nil
	})
	if err != nil {
		return err
	}
	if penalized {
		l.logger.Info(ctx, "transfer penalty applied",
			logger.String("owner", owner.String()),
			logger.Int64("cost", l.limits.TransferCost),
			logger.Int64("total", sq.TotalPoints),
		)
		l.notify(ctx, sq)
	}
	return nil
}

// UseWildcard spends the squad's one wildcard, granting a full squad's worth
// of free transfers.
func (l *Ledger) UseWildcard(ctx context.Context, owner model.Owner) error {
	_, err := l.mutate(ctx, "use_wildcard", owner, func(sq *model.Squad) error {
		if sq.WildcardUsed {
			return ErrWildcardAlreadyUsed
		}
		sq.WildcardUsed = true
		sq.FreeTransfers = l.limits.SquadSize
		return nil
	})
	return err
}

// SetLineup marks exactly the given players as starters. Captain markers on
// players who drop to the bench are cleared.
func (l *Ledger) SetLineup(ctx context.Context, owner model.Owner, starters []model.PlayerID) error {
	_, err := l.mutate(ctx, "set_lineup", owner, func(sq *model.Squad) error {
		if len(starters) != LineupSize {
			return fmt.Errorf("%w: need %d, got %d", ErrArity, LineupSize, len(starters))
		}
		chosen := make(map[model.PlayerID]struct{}, LineupSize)
		counts := make(map[model.Position]int, len(model.Positions))
		for _, id := range starters {
			if _, dup := chosen[id]; dup {
				return fmt.Errorf("%w: player %d listed twice", ErrArity, id)
			}
			sl, ok := sq.Slot(id)
			if !ok {
				return fmt.Errorf("%w: player %d", ErrUnknownPlayer, id)
			}
			chosen[id] = struct{}{}
			counts[sl.Position]++
		}
		if err := checkQuotas(counts); err != nil {
			return err
		}
		for i := range sq.Slots {
			_, sq.Slots[i].Starter = chosen[sq.Slots[i].PlayerID]
		}
		if !sq.IsStarter(sq.Captain) {
			sq.Captain = 0
		}
		if !sq.IsStarter(sq.ViceCaptain) {
			sq.ViceCaptain = 0
		}
		return nil
	})
	return err
}

// SetCaptain names the captain and vice-captain.
func (l *Ledger) SetCaptain(ctx context.Context, owner model.Owner, captain, vice model.PlayerID) error {
	_, err := l.mutate(ctx, "set_captain", owner, func(sq *model.Squad) error {
		if !sq.IsStarter(captain) {
			return fmt.Errorf("%w: captain %d", ErrNotStarter, captain)
		}
		if !sq.IsStarter(vice) {
			return fmt.Errorf("%w: vice-captain %d", ErrNotStarter, vice)
		}
		if captain == vice {
			return ErrDuplicateCaptain
		}
		sq.Captain = captain
		sq.ViceCaptain = vice
		return nil
	})
	return err
}

// ResetTransfers runs at a period boundary: every squad gains one free
// transfer up to the per-period cap. Squads above the cap (from a wildcard)
// are brought back to it. It returns the number of squads changed.
func (l *Ledger) ResetTransfers(ctx context.Context) int {
	limit := l.limits.MaxFreeTransfers

	l.mu.Lock()
	changed := 0
	for owner, sq := range l.squads {
		next := min(sq.FreeTransfers+1, limit)
		if next == sq.FreeTransfers {
			continue
		}
		c := sq.Clone()
		c.FreeTransfers = next
		l.squads[owner] = c
		changed++
	}
	l.mu.Unlock()

	metrics.RecordLedgerOperation("reset_transfers", "ok")
	l.logger.Info(ctx, "free transfers reset", logger.Int("changed", changed), logger.Int("cap", limit))
	return changed
}

// Credit adds a settled period score to the squad. Only the settlement
// coordinator calls this; it is responsible for at-most-once application.
func (l *Ledger) Credit(ctx context.Context, owner model.Owner, period uint64, points int64) error {
	sq, err := l.mutate(ctx, "credit", owner, func(sq *model.Squad) error {
		sq.TotalPoints += points
		sq.PeriodPoints[period] = points
		return nil
	})
	if err != nil {
		return err
	}
	l.notify(ctx, sq)
	return nil
}

// Squad returns a copy of the owner's squad.
func (l *Ledger) Squad(_ context.Context, owner model.Owner) (*model.Squad, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sq, ok := l.squads[owner]
	if !ok {
		return nil, fmt.Errorf("squad %s: %w", owner, ErrNotFound)
	}
	return sq.Clone(), nil
}

// Exists reports whether owner has a squad.
func (l *Ledger) Exists(owner model.Owner) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.squads[owner]
	return ok
}

// Squads returns copies of every squad ordered by owner.
func (l *Ledger) Squads(_ context.Context) []*model.Squad {
	l.mu.Lock()
	out := make([]*model.Squad, 0, len(l.squads))
	for _, sq := range l.squads {
		out = append(out, sq.Clone())
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Owner[:], out[j].Owner[:]) < 0
	})
	return out
}

// Count returns the number of squads.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.squads)
}

// mutate applies fn to a copy of the owner's squad and stores the copy only
// if fn succeeds. The returned squad must not be modified by the caller.
func (l *Ledger) mutate(ctx context.Context, op string, owner model.Owner, fn func(*model.Squad) error) (*model.Squad, error) {
	l.mu.Lock()
	sq, ok := l.squads[owner]
	if !ok {
		l.mu.Unlock()
		metrics.RecordLedgerOperation(op, "rejected")
		return nil, fmt.Errorf("%s %s: %w", op, owner, ErrNotFound)
	}
	next := sq.Clone()
	if err := fn(next); err != nil {
		l.mu.Unlock()
		metrics.RecordLedgerOperation(op, "rejected")
		l.logger.Debug(ctx, "ledger operation rejected",
			logger.String("op", op),
			logger.String("owner", owner.String()),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", op, owner, err)
	}
	l.squads[owner] = next
	l.mu.Unlock()

	metrics.RecordLedgerOperation(op, "ok")
	return next, nil
}

func (l *Ledger) notify(ctx context.Context, sq *model.Squad) {
	if l.observer != nil {
		l.observer(ctx, sq.Owner, sq.TotalPoints)
	}
}

func (l *Ledger) addSlot(sq *model.Squad, p model.Player) error {
	if len(sq.Slots) >= l.limits.SquadSize {
		return ErrSquadFull
	}
	if _, dup := sq.Slot(p.ID); dup {
		return fmt.Errorf("%w: player %d", ErrDuplicatePlayer, p.ID)
	}
	if p.Price > sq.Budget {
		return fmt.Errorf("%w: price %d, remaining %d", ErrInsufficientBudget, p.Price, sq.Budget)
	}
	if sq.TeamCount(p.TeamID) >= l.limits.TeamLimit {
		return fmt.Errorf("%w: team %d already has %d players", ErrTeamLimitExceeded, p.TeamID, l.limits.TeamLimit)
	}
	sq.Slots = append(sq.Slots, model.Slot{
		PlayerID: p.ID,
		Position: p.Position,
		TeamID:   p.TeamID,
		Price:    p.Price,
	})
	sq.Budget -= p.Price
	return nil
}

func removeSlot(sq *model.Squad, id model.PlayerID) error {
	for i, sl := range sq.Slots {
		if sl.PlayerID != id {
			continue
		}
		sq.Budget += sl.Price
		sq.Slots = append(sq.Slots[:i], sq.Slots[i+1:]...)
		if sq.Captain == id {
			sq.Captain = 0
		}
		if sq.ViceCaptain == id {
			sq.ViceCaptain = 0
		}
		return nil
	}
	return fmt.Errorf("%w: player %d", ErrPlayerNotInSquad, id)
}

// quota is the allowed starter count for one position.
type quota struct {
	pos      model.Position
	min, max int
}

var lineupQuotas = [...]quota{
	{model.Goalkeeper, 1, 1},
	{model.Defender, 3, LineupSize},
	{model.Midfielder, 2, LineupSize},
	{model.Forward, 1, LineupSize},
}

func checkQuotas(counts map[model.Position]int) error {
	for _, q := range lineupQuotas {
		got := counts[q.pos]
		if got < q.min || got > q.max {
			return &PositionQuotaError{Position: q.pos, Got: got, Min: q.min, Max: q.max}
		}
	}
	return nil
}
