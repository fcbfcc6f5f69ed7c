package auditlog

import (
	"context"
	"sort"
	"sync"

	"warden/internal/domain"
)

// InMemoryStore keeps trail entries in process. Suited to tests and
// single-node deployments where durability across restarts is not required.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []domain.TrailEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AppendChange(_ context.Context, entry domain.TrailEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Metadata = entry.Metadata.Clone()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByNode(_ context.Context, nodeID string, limit int) ([]domain.TrailEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.TrailEntry{}
	for _, e := range s.entries {
		if e.NodeID == nodeID {
			e.Metadata = e.Metadata.Clone()
			out = append(out, e)
		}
	}
	return newestFirst(out, limit), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]domain.TrailEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TrailEntry, len(s.entries))
	for i, e := range s.entries {
		e.Metadata = e.Metadata.Clone()
		out[i] = e
	}
	return newestFirst(out, limit), nil
}

// newestFirst sorts by detection time descending with the entry id as a
// stable tiebreak, then applies the limit.
func newestFirst(entries []domain.TrailEntry, limit int) []domain.TrailEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].DetectedAt.Equal(entries[j].DetectedAt) {
			return entries[i].DetectedAt.After(entries[j].DetectedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
