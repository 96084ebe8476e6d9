// Package state persists per-module completion records so re-runs are
// idempotent across process restarts.
package state

import (
	"sort"
	"sync"
	"time"
)

// Record is the persisted state for one module. A record exists if and only
// if the module has been attempted at least once since state was last
// cleared; Complete is set only when a run finished with a healthy or
// degraded verdict.
type Record struct {
	Name      string    `json:"name"`
	Complete  bool      `json:"complete"`
	Timestamp time.Time `json:"timestamp"`
	Health    string    `json:"health"`
}

// Store is the engine's durability boundary. MarkComplete is the only
// mutating call on the success path; MarkFailed exists so that failed
// attempts still leave a record. Reset supports explicit forced re-runs.
type Store interface {
	IsComplete(name string) (bool, error)
	MarkComplete(name, health string) error
	MarkFailed(name, health string) error
	Reset(name string) error
	Get(name string) (Record, bool, error)
	All() ([]Record, error)
}

// MemoryStore is a map-backed Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) IsComplete(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	return ok && rec.Complete, nil
}

func (s *MemoryStore) MarkComplete(name, health string) error {
	return s.put(name, true, health)
}

func (s *MemoryStore) MarkFailed(name, health string) error {
	return s.put(name, false, health)
}

func (s *MemoryStore) put(name string, complete bool, health string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = Record{
		Name:      name,
		Complete:  complete,
		Timestamp: time.Now(),
		Health:    health,
	}
	return nil
}

func (s *MemoryStore) Reset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
	return nil
}

func (s *MemoryStore) Get(name string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	return rec, ok, nil
}

func (s *MemoryStore) All() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
