package journal

import (
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory journal for tests and short simulations.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]Record
	closed bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string][]Record),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(rec Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	run := m.runs[rec.RunID]
	rec.Sequence = int64(len(run)) + 1
	rec.RecordedAt = time.Now().UTC()
	m.runs[rec.RunID] = append(run, rec)
	return rec.Sequence, nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return slices.Clone(m.runs[runID]), nil
}

// Count implements Store.
func (m *MemoryStore) Count(runID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.runs[runID]), nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the total number of records across all runs.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		count += len(run)
	}
	return count
}
