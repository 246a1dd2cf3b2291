package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/matchday/internal/domain/model"
)

func ownerN(n int) model.Owner {
	var o model.Owner
	binary.BigEndian.PutUint64(o[12:], uint64(n))
	return o
}

func newTestStore(t testing.TB, opts ...Option) *TreapStore {
	t.Helper()
	s := NewTreapStore(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	changed, err := store.Set(ctx, ownerN(1), 57)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected first set to change the standings")
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, ownerN(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Points != 57 {
		t.Errorf("expected rank 1 with 57 points, got %+v", entry)
	}

	changed, _ = store.Set(ctx, ownerN(1), 57)
	if changed {
		t.Error("expected unchanged total to report false")
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Owner != ownerN(1) {
		t.Errorf("unexpected top entries %+v", entries)
	}
}

func TestTreapStore_PointsCanFall(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, _ = store.Set(ctx, ownerN(1), 50)
	_, _ = store.Set(ctx, ownerN(2), 40)

	// Transfer penalties lower a total.
	if _, err := store.Set(ctx, ownerN(1), 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, _ := store.Rank(ctx, ownerN(1))
	if entry.Rank != 2 || entry.Points != 30 {
		t.Errorf("expected rank 2 with 30 points, got %+v", entry)
	}

	_, _ = store.Set(ctx, ownerN(3), -4)
	entry, _ = store.Rank(ctx, ownerN(3))
	if entry.Rank != 3 {
		t.Errorf("expected negative total to rank last, got %d", entry.Rank)
	}
}

func TestTreapStore_OrderingAndTies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	totals := map[int]int64{1: 85, 2: 95, 3: 85, 4: 100, 5: 70, 6: 85}
	for id, pts := range totals {
		_, _ = store.Set(ctx, ownerN(id), pts)
	}

	top, err := store.TopN(ctx, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOwners := []int{4, 2, 1, 3, 6, 5}
	wantRanks := []int{1, 2, 3, 3, 3, 6}
	for i, e := range top {
		if e.Owner != ownerN(wantOwners[i]) {
			t.Errorf("position %d: expected owner %d, got %s", i, wantOwners[i], e.Owner)
		}
		if e.Rank != wantRanks[i] {
			t.Errorf("position %d: expected rank %d, got %d", i, wantRanks[i], e.Rank)
		}
	}

	for i, id := range wantOwners {
		entry, err := store.Rank(ctx, ownerN(id))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Rank != wantRanks[i] {
			t.Errorf("owner %d: Rank=%d, TopN rank=%d", id, entry.Rank, wantRanks[i])
		}
	}

	top, _ = store.TopN(ctx, 2)
	if len(top) != 2 {
		t.Errorf("expected 2 entries, got %d", len(top))
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Rank(ctx, ownerN(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if err := store.Remove(ctx, ownerN(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on remove, got %v", err)
	}

	_, _ = store.Set(ctx, ownerN(1), 10)
	_, _ = store.Set(ctx, ownerN(2), 20)
	if err := store.Remove(ctx, ownerN(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, _ := store.Rank(ctx, ownerN(1))
	if entry.Rank != 1 || store.Count(ctx) != 1 {
		t.Errorf("expected single remaining squad at rank 1, got %+v", entry)
	}
}

func TestTreapStore_RankCorrectnessUnderStress(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rng := rand.New(rand.NewSource(7))

	const n = 2000
	totals := make(map[int]int64, n)
	for i := 0; i < 5*n; i++ {
		id := rng.Intn(n)
		pts := int64(rng.Intn(300) - 20)
		totals[id] = pts
		_, _ = store.Set(ctx, ownerN(id), pts)
	}

	points := make([]int64, 0, len(totals))
	for _, p := range totals {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] > points[j] })

	for id, pts := range totals {
		want := 1 + sort.Search(len(points), func(i int) bool { return points[i] <= pts })
		entry, err := store.Rank(ctx, ownerN(id))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Rank != want {
			t.Fatalf("owner %d with %d points: rank %d, want %d", id, pts, entry.Rank, want)
		}
	}

	top, _ := store.TopN(ctx, len(totals))
	for i := 1; i < len(top); i++ {
		if !less(top[i-1].Points, top[i-1].Owner, top[i].Points, top[i].Owner) {
			t.Fatalf("top entries out of order at %d", i)
		}
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = store.Set(ctx, ownerN(w*1000+i), int64(i))
				_, _ = store.TopN(ctx, 10)
				_, _ = store.Rank(ctx, ownerN(w*1000+i))
			}
		}(w)
	}
	wg.Wait()

	if count := store.Count(ctx); count != 1600 {
		t.Errorf("expected 1600 squads, got %d", count)
	}
}

func TestTreapStore_PeriodicSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithSnapshotInterval(10*time.Millisecond), WithTopCacheSize(2))

	if snap := store.Snapshot(); snap == nil || snap.Count != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", snap)
	}

	_, _ = store.Set(ctx, ownerN(1), 10)
	_, _ = store.Set(ctx, ownerN(2), 30)
	_, _ = store.Set(ctx, ownerN(3), 20)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := store.Snapshot(); snap.Count == 3 {
			if len(snap.Top) != 2 || snap.Top[0].Owner != ownerN(2) || snap.Top[1].Rank != 2 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshot was not published")
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	store := NewTreapStore(context.Background())
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func BenchmarkTreapStore_SetAndRank(b *testing.B) {
	ctx := context.Background()
	store := newTestStore(b)
	for i := 0; i < 100_000; i++ {
		_, _ = store.Set(ctx, ownerN(i), int64(i%2500))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o := ownerN(i % 100_000)
		_, _ = store.Set(ctx, o, int64(i%2500))
		_, _ = store.Rank(ctx, o)
	}
}
