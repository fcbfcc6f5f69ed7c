package ports

import (
	"context"

	"warden/internal/domain"
)

// GraphPort is the boundary to the graph storage and blast-radius
// collaborators. It allows the governor to resolve targets and measure
// impact without depending on how the graph engine is implemented.
type GraphPort interface {
	// GetNode resolves a node by id.
	// Returns nil, nil when the node does not exist (normal for creates).
	// Returns nil, error only for infrastructure failures.
	GetNode(ctx context.Context, id string) (*domain.Node, error)

	// GetBlastRadius returns the transitively affected set and its
	// aggregate monthly cost, bounded to maxDepth hops.
	GetBlastRadius(ctx context.Context, id string, maxDepth int) (domain.BlastRadius, error)

	// GetEdgesForNode lists the node's edges in one direction; the
	// governor uses only the downstream count.
	GetEdgesForNode(ctx context.Context, id string, direction domain.EdgeDirection) ([]domain.Edge, error)
}
