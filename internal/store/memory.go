package store

import (
	"context"
	"sync"

	"github.com/dharsanguruparan/SectionDrop/internal/model"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	records []model.FileRecord
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds rec to the end of the list.
func (m *Memory) Append(_ context.Context, rec model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// List returns a copy so callers cannot mutate internal state.
func (m *Memory) List(_ context.Context) ([]model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.FileRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// BySection returns the records tagged with section.
func (m *Memory) BySection(_ context.Context, section string) ([]model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FilterSection(m.records, section), nil
}
