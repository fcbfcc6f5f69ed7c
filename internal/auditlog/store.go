// Package auditlog is the append-only change log behind the governor. Every
// intercepted request and every resolution lands here as a trail entry;
// entries are never mutated or deleted.
package auditlog

import (
	"context"

	"warden/internal/domain"
)

// Store persists trail entries. Implementations must treat the log as
// append-only.
type Store interface {
	// AppendChange records one entry. Failures must propagate so callers
	// can refuse a decision that left no trace.
	AppendChange(ctx context.Context, entry domain.TrailEntry) error

	// ListByNode returns the entries for one node, newest first. limit<=0
	// means no limit.
	ListByNode(ctx context.Context, nodeID string, limit int) ([]domain.TrailEntry, error)

	// ListRecent returns the most recent entries across all nodes, newest
	// first. limit<=0 means no limit.
	ListRecent(ctx context.Context, limit int) ([]domain.TrailEntry, error)
}
