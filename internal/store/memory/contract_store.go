package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// ContractStore is an in-memory implementation of domain.ContractStore.
type ContractStore struct {
	mu   sync.RWMutex
	data map[string]domain.Contract
	now  func() time.Time
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		data: make(map[string]domain.Contract),
		now:  time.Now,
	}
}

// Put inserts or replaces a contract. Test seeding helper.
func (s *ContractStore) Put(c domain.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.ID] = c
}

// Get returns a contract by id. Test inspection helper.
func (s *ContractStore) Get(id string) (domain.Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[id]
	return c, ok
}

// ListActiveByEvent returns the active contracts linked to one event.
func (s *ContractStore) ListActiveByEvent(_ context.Context, eventID string) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contracts []domain.Contract
	for _, c := range s.data {
		if c.Active && c.EventID != nil && *c.EventID == eventID {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool {
		if contracts[i].Source != contracts[j].Source {
			return contracts[i].Source < contracts[j].Source
		}
		return contracts[i].SourceID < contracts[j].SourceID
	})
	return contracts, nil
}

// ListUnembedded returns active contracts without an embedding, oldest first.
func (s *ContractStore) ListUnembedded(_ context.Context, limit int) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contracts []domain.Contract
	for _, c := range s.data {
		if len(c.Embedding) == 0 && c.Active {
			contracts = append(contracts, c)
		}
	}
	sortByCreated(contracts)
	if limit > 0 && len(contracts) > limit {
		contracts = contracts[:limit]
	}
	return contracts, nil
}

// ListMatchable returns active, unmapped, embedded, unstamped contracts.
func (s *ContractStore) ListMatchable(_ context.Context, limit int) ([]domain.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var contracts []domain.Contract
	for _, c := range s.data {
		if c.Active && c.EventID == nil && len(c.Embedding) > 0 && c.CheckedAt == nil {
			contracts = append(contracts, c)
		}
	}
	sortByCreated(contracts)
	if limit > 0 && len(contracts) > limit {
		contracts = contracts[:limit]
	}
	return contracts, nil
}

// WriteEmbedding stores the embedding vector for one contract.
func (s *ContractStore) WriteEmbedding(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Embedding = append([]float32(nil), vec...)
	c.UpdatedAt = s.now()
	s.data[id] = c
	return nil
}

// LinkToEvent assigns a contract to a canonical event.
func (s *ContractStore) LinkToEvent(_ context.Context, contractID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[contractID]
	if !ok {
		return domain.ErrNotFound
	}
	id := eventID
	c.EventID = &id
	c.UpdatedAt = s.now()
	s.data[contractID] = c
	return nil
}

// StampChecked marks a contract as considered and rejected this run.
func (s *ContractStore) StampChecked(_ context.Context, contractID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[contractID]
	if !ok {
		return domain.ErrNotFound
	}
	stamp := at
	c.CheckedAt = &stamp
	c.UpdatedAt = s.now()
	s.data[contractID] = c
	return nil
}

// ClearCheckedStamps resets the checked marker on all still-unmapped contracts.
func (s *ContractStore) ClearCheckedStamps(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cleared int64
	for id, c := range s.data {
		if c.EventID == nil && c.CheckedAt != nil {
			c.CheckedAt = nil
			s.data[id] = c
			cleared++
		}
	}
	return cleared, nil
}

func sortByCreated(contracts []domain.Contract) {
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].CreatedAt.Before(contracts[j].CreatedAt)
	})
}
