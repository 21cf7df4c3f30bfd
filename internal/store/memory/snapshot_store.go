package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// SnapshotStore is an in-memory implementation of domain.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	data   []domain.ProbSnapshot
	nextID int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

// Append inserts one probability observation.
func (s *SnapshotStore) Append(_ context.Context, snap domain.ProbSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.ID = s.nextID
	s.nextID++
	s.data = append(s.data, snap)
	return nil
}

// All returns a copy of every stored snapshot. Test inspection helper.
func (s *SnapshotStore) All() []domain.ProbSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ProbSnapshot(nil), s.data...)
}

// LatestBefore returns the most recent snapshot for (event, source) captured
// at or before the given time.
func (s *SnapshotStore) LatestBefore(_ context.Context, eventID, source string, at time.Time) (domain.ProbSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.ProbSnapshot
	found := false
	for _, snap := range s.data {
		if snap.EventID != eventID || snap.Source != source || snap.CapturedAt.After(at) {
			continue
		}
		if !found || snap.CapturedAt.After(best.CapturedAt) {
			best = snap
			found = true
		}
	}
	if !found {
		return domain.ProbSnapshot{}, domain.ErrNotFound
	}
	return best, nil
}

// ListInWindow returns snapshots for (event, source) captured at or after
// since, oldest first.
func (s *SnapshotStore) ListInWindow(_ context.Context, eventID, source string, since time.Time) ([]domain.ProbSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []domain.ProbSnapshot
	for _, snap := range s.data {
		if snap.EventID == eventID && snap.Source == source && !snap.CapturedAt.Before(since) {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})
	return snaps, nil
}

// ListBefore returns up to limit snapshots older than cutoff, oldest first.
func (s *SnapshotStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ProbSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []domain.ProbSnapshot
	for _, snap := range s.data {
		if snap.CapturedAt.Before(cutoff) {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

// DeleteBefore removes snapshots older than cutoff and returns the count.
func (s *SnapshotStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	var deleted int64
	for _, snap := range s.data {
		if snap.CapturedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, snap)
	}
	s.data = kept
	return deleted, nil
}
