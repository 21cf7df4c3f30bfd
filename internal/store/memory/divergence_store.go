package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// DivergenceStore is an in-memory implementation of domain.DivergenceStore.
type DivergenceStore struct {
	mu     sync.RWMutex
	data   []domain.Divergence
	nextID int64
}

// NewDivergenceStore creates a new in-memory divergence store.
func NewDivergenceStore() *DivergenceStore {
	return &DivergenceStore{nextID: 1}
}

// Append inserts one divergence observation.
func (s *DivergenceStore) Append(_ context.Context, d domain.Divergence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = s.nextID
	s.nextID++
	s.data = append(s.data, d)
	return nil
}

// All returns a copy of every stored divergence. Test inspection helper.
func (s *DivergenceStore) All() []domain.Divergence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Divergence(nil), s.data...)
}

// ListByEvent returns divergences for one event captured at or after since,
// oldest first.
func (s *DivergenceStore) ListByEvent(_ context.Context, eventID string, since time.Time) ([]domain.Divergence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var divs []domain.Divergence
	for _, d := range s.data {
		if d.EventID == eventID && !d.CapturedAt.Before(since) {
			divs = append(divs, d)
		}
	}
	sort.Slice(divs, func(i, j int) bool {
		return divs[i].CapturedAt.Before(divs[j].CapturedAt)
	})
	return divs, nil
}

// ListBefore returns up to limit divergences older than cutoff, oldest first.
func (s *DivergenceStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Divergence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var divs []domain.Divergence
	for _, d := range s.data {
		if d.CapturedAt.Before(cutoff) {
			divs = append(divs, d)
		}
	}
	sort.Slice(divs, func(i, j int) bool {
		return divs[i].CapturedAt.Before(divs[j].CapturedAt)
	})
	if limit > 0 && len(divs) > limit {
		divs = divs[:limit]
	}
	return divs, nil
}

// DeleteBefore removes divergences older than cutoff and returns the count.
func (s *DivergenceStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	var deleted int64
	for _, d := range s.data {
		if d.CapturedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	s.data = kept
	return deleted, nil
}
