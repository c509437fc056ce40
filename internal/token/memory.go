package token

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps invalid-token records in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]time.Time
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]time.Time)}
}

func (m *MemoryRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, purgeAt := range m.records {
		if !purgeAt.After(before) {
			delete(m.records, hash)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) Insert(_ context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.TokenHash]; ok {
		return false, nil
	}
	m.records[rec.TokenHash] = rec.PurgeAt
	return true, nil
}

func (m *MemoryRepository) Exists(_ context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[tokenHash]
	return ok, nil
}

// Len reports how many records are held.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
