package ports

import (
	"context"

	"warden/internal/domain"
)

// AuditPort is the boundary to the append-only audit sink. Defined here
// rather than importing the sink implementation to keep hexagonal boundaries.
//
// AppendChange failures propagate to the caller of the mutating operation:
// a governance decision that cannot be recorded is not silently dropped.
type AuditPort interface {
	AppendChange(ctx context.Context, entry domain.TrailEntry) error
}
