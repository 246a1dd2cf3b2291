// Package repository keeps the season standings: squads ordered by total
// points.
package repository

import (
	"context"

	"github.com/okian/matchday/internal/domain/model"
)

// Entry is one standings row.
type Entry struct {
	Rank   int         `json:"rank"`
	Owner  model.Owner `json:"owner"`
	Points int64       `json:"points"`
}

// Store provides read/write access to the standings.
type Store interface {
	// Set records owner's current total. It returns false when the total
	// was already recorded.
	Set(ctx context.Context, owner model.Owner, points int64) (bool, error)

	// Remove drops owner from the standings.
	Remove(ctx context.Context, owner model.Owner) error

	// Rank returns owner's row. Returns ErrNotFound if owner is unknown.
	Rank(ctx context.Context, owner model.Owner) (Entry, error)

	// TopN returns the first n rows, best first.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of squads tracked.
	Count(ctx context.Context) int
}
