// Package memory provides in-memory implementations of the domain store
// interfaces, used by tests and by the once mode's dry runs.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// EventStore is an in-memory implementation of domain.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]domain.Event
	now  func() time.Time
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]domain.Event),
		now:  time.Now,
	}
}

// Put inserts or replaces an event. Test seeding helper, not part of the
// domain interface.
func (s *EventStore) Put(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.ID] = e
}

// GetByID retrieves an event by its primary key.
func (s *EventStore) GetByID(_ context.Context, id string) (domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return e, nil
}

// ListEligible returns open, active events sorted by creation time.
func (s *EventStore) ListEligible(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []domain.Event
	for _, e := range s.data {
		if e.Active && e.Resolution == domain.ResolutionOpen {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// WriteFused overwrites the fused columns on one event.
func (s *EventStore) WriteFused(_ context.Context, id string, f domain.FusedFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p := f.Probability
	e.Probability = &p
	e.Volume24h = f.Volume24h
	e.VolumeTotal = f.VolumeTotal
	e.Liquidity = f.Liquidity
	e.Traders = f.Traders
	e.SourceCount = f.SourceCount
	e.Quality = f.Quality
	e.Change24h = f.Change24h
	e.Change7d = f.Change7d
	e.Change30d = f.Change30d
	e.High30d = f.High30d
	e.Low30d = f.Low30d
	e.MaxSpread = f.MaxSpread
	e.UpdatedAt = s.now()
	s.data[id] = e
	return nil
}

// BatchDeactivate flips the active flag off for the given events.
func (s *EventStore) BatchDeactivate(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if e, ok := s.data[id]; ok {
			e.Active = false
			e.UpdatedAt = s.now()
			s.data[id] = e
		}
	}
	return nil
}

// ListUnembedded returns active open events without an embedding, oldest first.
func (s *EventStore) ListUnembedded(_ context.Context, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []domain.Event
	for _, e := range s.data {
		if len(e.Embedding) == 0 && e.Active && e.Resolution == domain.ResolutionOpen {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// WriteEmbedding stores the embedding vector for one event.
func (s *EventStore) WriteEmbedding(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Embedding = append([]float32(nil), vec...)
	e.UpdatedAt = s.now()
	s.data[id] = e
	return nil
}

// SimilaritySearch returns up to k open events by cosine similarity to vec,
// best first, filtered to similarity >= floor.
func (s *EventStore) SimilaritySearch(_ context.Context, vec []float32, floor float64, k int) ([]domain.EventMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.EventMatch
	for _, e := range s.data {
		if len(e.Embedding) == 0 || !e.Active || e.Resolution != domain.ResolutionOpen {
			continue
		}
		sim := cosine(vec, e.Embedding)
		if sim >= floor {
			matches = append(matches, domain.EventMatch{
				EventID:    e.ID,
				Title:      e.Title,
				Similarity: sim,
			})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
