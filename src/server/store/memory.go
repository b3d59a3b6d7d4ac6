package store

import (
	"sync"
	"time"

	"github.com/dujjonku-map/server/src/server/data"
)

type MemoryStore struct {
	mu        sync.RWMutex
	summaries []data.SnapshotSummary
	stores    map[int64][]data.Store
	labels    map[string]int64
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores: make(map[int64][]data.Store),
		labels: make(map[string]int64),
		nextID: 1,
	}
}

func (s *MemoryStore) HasSnapshot(updatedAt string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.labels[updatedAt]
	return ok
}

func (s *MemoryStore) AddSnapshot(snap data.Snapshot, archiveKey string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.labels[snap.UpdatedAt]; ok {
		return id, false
	}

	id := s.nextID
	s.nextID++
	s.labels[snap.UpdatedAt] = id
	s.summaries = append(s.summaries, data.SnapshotSummary{
		ID:         id,
		UpdatedAt:  snap.UpdatedAt,
		Total:      snap.Total,
		Available:  snap.Available,
		ArchiveKey: archiveKey,
		FetchedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	rows := make([]data.Store, len(snap.Stores))
	copy(rows, snap.Stores)
	s.stores[id] = rows
	return id, true
}

// ListSnapshots returns the newest snapshots first. A non-positive limit
// returns everything.
func (s *MemoryStore) ListSnapshots(limit int) []data.SnapshotSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.summaries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]data.SnapshotSummary, 0, n)
	for i := len(s.summaries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.summaries[i])
	}
	return out
}

func (s *MemoryStore) GetSnapshotStores(id int64) ([]data.Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.stores[id]
	if !ok {
		return nil, false
	}
	out := make([]data.Store, len(rows))
	copy(out, rows)
	return out, true
}
