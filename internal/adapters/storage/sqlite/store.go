// Package sqlite persists settlement records so at-most-once crediting
// survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/matchday/internal/adapters/storage/sqlite/migrations"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/settlement"
)

var ErrPathRequired = errors.New("storage path is required")

// Store is a SQLite implementation of settlement.Records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ settlement.Records = (*Store)(nil)

// Open opens path, creating and migrating it as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SeenAndRecord inserts the (owner, period) record and reports whether it
// already existed.
func (s *Store) SeenAndRecord(ctx context.Context, owner model.Owner, period uint64, score uint64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settlement_records (owner, period, score, applied_at) VALUES (?, ?, ?, ?)`,
		owner.String(), int64(period), int64(score), s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert settlement record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert settlement record: %w", err)
	}
	return n == 0, nil
}

// Unrecord deletes the (owner, period) record.
func (s *Store) Unrecord(ctx context.Context, owner model.Owner, period uint64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM settlement_records WHERE owner = ? AND period = ?`,
		owner.String(), int64(period),
	); err != nil {
		return fmt.Errorf("delete settlement record: %w", err)
	}
	return nil
}

// Applied reports whether (owner, period) has been recorded.
func (s *Store) Applied(ctx context.Context, owner model.Owner, period uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM settlement_records WHERE owner = ? AND period = ?`,
		owner.String(), int64(period),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query settlement record: %w", err)
	}
	return true, nil
}

// Size returns the number of stored records.
func (s *Store) Size(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlement_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count settlement records: %w", err)
	}
	return n, nil
}

// Credits lists the scores recorded for owner, ordered by period. The
// service replays them when a squad is registered again after a restart.
func (s *Store) Credits(ctx context.Context, owner model.Owner) ([]settlement.Credit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT period, score FROM settlement_records WHERE owner = ? ORDER BY period`,
		owner.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list settlement records: %w", err)
	}
	defer rows.Close()

	var out []settlement.Credit
	for rows.Next() {
		var period, score int64
		if err := rows.Scan(&period, &score); err != nil {
			return nil, fmt.Errorf("scan settlement record: %w", err)
		}
		out = append(out, settlement.Credit{Period: uint64(period), Score: uint64(score)})
	}
	return out, rows.Err()
}
