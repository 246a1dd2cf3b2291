package simulate

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
)

// maxStandingsPage is the largest page the service serves by default.
const maxStandingsPage = 100

// ErrMismatch is wrapped by every standings inconsistency.
var ErrMismatch = errors.New("standings mismatch")

// verify checks that each squad's ranked points equal the sum of its
// committed leaf scores and that the top of the table is ordered.
func (r *runner) verify(ctx context.Context) error {
	want := expectedPoints(r.commits)
	for _, o := range r.owners {
		e, err := r.client.Rank(ctx, o)
		if err != nil {
			return fmt.Errorf("rank %s: %w", o, err)
		}
		if e.Points != want[o] {
			return fmt.Errorf("%w: %s has %d points, committed %d", ErrMismatch, o, e.Points, want[o])
		}
		r.stats.StandingsChecked++
	}

	top, err := r.client.Standings(ctx, min(max(len(r.owners), 1), maxStandingsPage))
	if err != nil {
		return fmt.Errorf("standings: %w", err)
	}
	if err := checkOrder(top); err != nil {
		return err
	}
	if len(top) > 0 {
		r.logger.Info(ctx, "standings verified",
			logger.Int("checked", r.stats.StandingsChecked),
			logger.String("leader", top[0].Owner.String()),
			logger.Int64("points", top[0].Points))
	}
	return nil
}

func expectedPoints(commits map[uint64]Commitment) map[model.Owner]int64 {
	out := make(map[model.Owner]int64)
	for _, c := range commits {
		for _, l := range c.Leaves {
			out[l.Owner] += int64(l.Score)
		}
	}
	return out
}

// checkOrder requires points to be non-increasing and ranks to follow
// competition ranking: ties share a rank, the next rank skips past them.
func checkOrder(entries []Entry) error {
	for i, e := range entries {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: leader has rank %d", ErrMismatch, e.Rank)
			}
			continue
		}
		prev := entries[i-1]
		switch {
		case e.Points > prev.Points:
			return fmt.Errorf("%w: row %d has %d points above %d", ErrMismatch, i, e.Points, prev.Points)
		case e.Points == prev.Points && e.Rank != prev.Rank:
			return fmt.Errorf("%w: tied rows %d and %d ranked %d and %d", ErrMismatch, i-1, i, prev.Rank, e.Rank)
		case e.Points < prev.Points && e.Rank != i+1:
			return fmt.Errorf("%w: row %d ranked %d", ErrMismatch, i, e.Rank)
		}
	}
	return nil
}
