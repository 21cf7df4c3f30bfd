package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stevenchzhen/prythia/internal/domain"
)

type mappingKey struct {
	source   string
	sourceID string
}

// MappingStore is an in-memory implementation of domain.MappingStore.
type MappingStore struct {
	mu   sync.RWMutex
	data map[mappingKey]domain.Mapping
}

// NewMappingStore creates a new in-memory mapping store.
func NewMappingStore() *MappingStore {
	return &MappingStore{data: make(map[mappingKey]domain.Mapping)}
}

// Upsert inserts or overwrites the mapping for one (source, source_id) pair.
func (s *MappingStore) Upsert(_ context.Context, m domain.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[mappingKey{m.Source, m.SourceID}] = m
	return nil
}

// Get retrieves the mapping for one (source, source_id) pair.
func (s *MappingStore) Get(_ context.Context, source, sourceID string) (domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[mappingKey{source, sourceID}]
	if !ok {
		return domain.Mapping{}, domain.ErrNotFound
	}
	return m, nil
}

// ListByEvent returns all mappings pointing at one event.
func (s *MappingStore) ListByEvent(_ context.Context, eventID string) ([]domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mappings []domain.Mapping
	for _, m := range s.data {
		if m.EventID == eventID {
			mappings = append(mappings, m)
		}
	}
	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].Source != mappings[j].Source {
			return mappings[i].Source < mappings[j].Source
		}
		return mappings[i].SourceID < mappings[j].SourceID
	})
	return mappings, nil
}

// Count returns the number of stored mappings. Test inspection helper.
func (s *MappingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
