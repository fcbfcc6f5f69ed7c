package governor

import (
	"context"

	"warden/internal/domain"
)

// Registry is the in-process index of change requests. It is a fast query
// surface over what the audit sink records durably; treat it as a cache
// rebuildable from the log. The governor owns its lifecycle.
type Registry interface {
	// Save stores a freshly intercepted request.
	Save(ctx context.Context, req *domain.ChangeRequest) error

	// Get returns a copy of the request, or sentinel.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ChangeRequest, error)

	// Resolve atomically transitions a pending request. The mutate
	// callback runs under the store's lock only if the request is still
	// pending; concurrent losers get sentinel.ErrInvalidState. Returns a
	// copy of the resolved request.
	Resolve(ctx context.Context, id string, mutate func(*domain.ChangeRequest)) (*domain.ChangeRequest, error)

	// List returns copies of all requests in no particular order.
	List(ctx context.Context) ([]*domain.ChangeRequest, error)
}
