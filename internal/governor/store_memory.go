package governor

import (
	"context"
	"fmt"
	"sync"

	"warden/internal/domain"
	"warden/pkg/platform/sentinel"
)

// InMemoryRegistry is the default Registry: a mutex-guarded map with
// compare-and-transition resolution semantics.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	requests map[string]*domain.ChangeRequest
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{requests: make(map[string]*domain.ChangeRequest)}
}

func (s *InMemoryRegistry) Save(_ context.Context, req *domain.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemoryRegistry) Get(_ context.Context, id string) (*domain.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	return req.Clone(), nil
}

// Resolve holds the write lock across the status check and the mutation, so
// exactly one caller can move a request out of pending.
func (s *InMemoryRegistry) Resolve(_ context.Context, id string, mutate func(*domain.ChangeRequest)) (*domain.ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if req.Status != domain.StatusPending {
		return nil, fmt.Errorf("request %s already %s: %w", id, req.Status, sentinel.ErrInvalidState)
	}

	mutate(req)
	return req.Clone(), nil
}

func (s *InMemoryRegistry) List(_ context.Context) ([]*domain.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ChangeRequest, 0, len(s.requests))
	for _, req := range s.requests {
		out = append(out, req.Clone())
	}
	return out, nil
}
