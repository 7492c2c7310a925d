package checkpoint

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore keeps encoded records in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	records     map[string][]byte
	summaries   map[string]Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.records = make(map[string][]byte)
	s.summaries = make(map[string]Summary)
	return nil
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	payload, err := Encode(record)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.records[record.ID] = payload
	s.summaries[record.ID] = record.Summary()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	payload, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return Record{}, false, nil
	}
	record, err := Decode(payload)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		out = append(out, sum)
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	delete(s.summaries, id)
	return nil
}

// sortSummaries orders by creation time, then id.
func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}
