// Package store holds the in-memory snapshot of the last successfully
// fetched incident set per source.
package store

import (
	"sync"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
)

// Memory is an in-memory domain.SnapshotStore.
//
// The poll orchestrator guarantees a single writer per source per cycle;
// the RWMutex protects the map itself against concurrent access from
// different sources' tasks and from readers (broadcast, initial-data
// snapshotting, the JSON API). Every Put swaps the full set; readers never
// observe a partially written snapshot.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.Incident
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string][]domain.Incident)}
}

// Get returns the last accepted incident set for a source, or (nil, false)
// if the source has never been fetched successfully.
func (m *Memory) Get(code string) ([]domain.Incident, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	incidents, ok := m.snapshots[code]
	return incidents, ok
}

// Put replaces the snapshot for a source atomically. The previous set is
// discarded, never merged.
func (m *Memory) Put(code string, incidents []domain.Incident) {
	m.mu.Lock()
	m.snapshots[code] = incidents
	m.mu.Unlock()
}

// All returns a point-in-time copy of the snapshot map. The incident slices
// are shared but treated as immutable once stored.
func (m *Memory) All() map[string][]domain.Incident {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]domain.Incident, len(m.snapshots))
	for code, incidents := range m.snapshots {
		out[code] = incidents
	}
	return out
}
