// Package storetest provides an in-memory store.Store double for tests
// across the riskengine packages, standing in for RedisStore the same way
// the teacher's service tests stand in for a real repository with
// testify/mock rather than a live database.
package storetest

import (
	"context"
	"encoding/json"
	"sync"

	"sentinel/internal/riskengine"
)

// Store is a goroutine-safe, in-memory implementation of store.Store.
// Records round-trip through JSON, matching RedisStore's own marshal
// behaviour so tests exercise the same (de)serialization path.
type Store struct {
	mu       sync.Mutex
	records  map[string]map[string][]byte
	counters map[string]map[string]float64
}

func New() *Store {
	return &Store{
		records:  make(map[string]map[string][]byte),
		counters: make(map[string]map[string]float64),
	}
}

func (s *Store) Put(ctx context.Context, set, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return riskengine.StoreError("marshal record", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[set] == nil {
		s.records[set] = make(map[string][]byte)
	}
	s.records[set][key] = data
	return nil
}

func (s *Store) Get(ctx context.Context, set, key string, dest any) (bool, error) {
	s.mu.Lock()
	data, ok := s.records[set][key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, riskengine.StoreError("unmarshal record", err)
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, set, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[set], key)
	return nil
}

func (s *Store) ScanAll(ctx context.Context, set string, visit func(key string, raw []byte) error) error {
	s.mu.Lock()
	snapshot := make(map[string][]byte, len(s.records[set]))
	for k, v := range s.records[set] {
		snapshot[k] = v
	}
	s.mu.Unlock()
	for k, v := range snapshot {
		if err := visit(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddAndGet(ctx context.Context, set, key, field string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counterKey := set + ":" + key
	if s.counters[counterKey] == nil {
		s.counters[counterKey] = make(map[string]float64)
	}
	s.counters[counterKey][field] += delta
	return s.counters[counterKey][field], nil
}

// Count returns the number of records stored in set, for assertions.
func (s *Store) Count(set string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[set])
}
