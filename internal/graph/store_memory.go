// Package graph provides in-process adapters for the graph storage and
// blast-radius collaborators. The real graph engine lives in another
// service; this package covers development, tests, and single-node
// deployments.
package graph

import (
	"context"
	"sync"

	"warden/internal/domain"
)

// InMemoryStore holds nodes and directed dependency edges and answers the
// three queries the governor consumes.
type InMemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*domain.Node
	// downstream[from] lists edges pointing at the resources that depend
	// on from.
	downstream map[string][]domain.Edge
	upstream   map[string][]domain.Edge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nodes:      make(map[string]*domain.Node),
		downstream: make(map[string][]domain.Edge),
		upstream:   make(map[string][]domain.Edge),
	}
}

// PutNode inserts or replaces a node.
func (s *InMemoryStore) PutNode(node *domain.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.ID] = cloneNode(node)
}

// AddEdge records a dependency relation.
func (s *InMemoryStore) AddEdge(edge domain.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downstream[edge.From] = append(s.downstream[edge.From], edge)
	s.upstream[edge.To] = append(s.upstream[edge.To], edge)
}

func (s *InMemoryStore) GetNode(_ context.Context, id string) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNode(s.nodes[id]), nil
}

func (s *InMemoryStore) GetEdgesForNode(_ context.Context, id string, direction domain.EdgeDirection) ([]domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if direction == domain.DirectionUpstream {
		return append([]domain.Edge{}, s.upstream[id]...), nil
	}
	return append([]domain.Edge{}, s.downstream[id]...), nil
}

// GetBlastRadius walks downstream edges breadth-first to maxDepth hops and
// aggregates the monthly cost of everything reached. The target itself is
// not part of its own blast radius.
func (s *InMemoryStore) GetBlastRadius(_ context.Context, id string, maxDepth int) (domain.BlastRadius, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[string]bool{id: true}
	affected := []string{}
	totalCost := 0.0

	frontier := []string{id}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := []string{}
		for _, current := range frontier {
			for _, edge := range s.downstream[current] {
				if visited[edge.To] {
					continue
				}
				visited[edge.To] = true
				affected = append(affected, edge.To)
				totalCost += s.nodes[edge.To].KnownMonthlyCost()
				next = append(next, edge.To)
			}
		}
		frontier = next
	}

	return domain.BlastRadius{Nodes: affected, TotalCostMonthly: totalCost}, nil
}

func cloneNode(n *domain.Node) *domain.Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Tags != nil {
		cp.Tags = make(map[string]string, len(n.Tags))
		for k, v := range n.Tags {
			cp.Tags[k] = v
		}
	}
	cp.Metadata = n.Metadata.Clone()
	if n.MonthlyCost != nil {
		c := *n.MonthlyCost
		cp.MonthlyCost = &c
	}
	return &cp
}
