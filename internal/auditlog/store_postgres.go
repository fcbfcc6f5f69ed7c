package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"warden/internal/domain"
)

// PostgresStore persists trail entries in PostgreSQL. Rows are insert-only;
// there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The caller owns the
// handle's lifecycle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the change_log table if it does not exist. Intended
// for development and tests; production deployments run migrations out of
// band.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS change_log (
			id               TEXT PRIMARY KEY,
			node_id          TEXT NOT NULL,
			change_type      TEXT NOT NULL,
			field            TEXT NOT NULL,
			previous_value   TEXT NOT NULL DEFAULT '',
			new_value        TEXT NOT NULL DEFAULT '',
			detected_at      TIMESTAMPTZ NOT NULL,
			detection_method TEXT NOT NULL,
			correlation_id   TEXT NOT NULL,
			initiator        TEXT NOT NULL,
			initiator_class  TEXT NOT NULL,
			metadata         JSONB NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS change_log_node_idx ON change_log (node_id, detected_at DESC);
		CREATE INDEX IF NOT EXISTS change_log_detected_idx ON change_log (detected_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure change_log schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendChange(ctx context.Context, entry domain.TrailEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal trail metadata: %w", err)
	}

	const query = `
		INSERT INTO change_log (
			id, node_id, change_type, field, previous_value, new_value,
			detected_at, detection_method, correlation_id,
			initiator, initiator_class, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.NodeID, string(entry.Type), entry.Field,
		entry.PreviousValue, entry.NewValue,
		entry.DetectedAt, entry.DetectionMethod, entry.CorrelationID,
		entry.Initiator, string(entry.InitiatorClass), metadata,
	)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByNode(ctx context.Context, nodeID string, limit int) ([]domain.TrailEntry, error) {
	const query = `
		SELECT id, node_id, change_type, field, previous_value, new_value,
		       detected_at, detection_method, correlation_id,
		       initiator, initiator_class, metadata
		FROM change_log
		WHERE node_id = $1
		ORDER BY detected_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, nodeID, effectiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list changes by node: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]domain.TrailEntry, error) {
	const query = `
		SELECT id, node_id, change_type, field, previous_value, new_value,
		       detected_at, detection_method, correlation_id,
		       initiator, initiator_class, metadata
		FROM change_log
		ORDER BY detected_at DESC, id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, effectiveLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent changes: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// effectiveLimit maps "no limit" onto a bounded query. Callers that truly
// need the full log paginate instead.
func effectiveLimit(limit int) int {
	if limit <= 0 {
		return 10000
	}
	return limit
}

func scanEntries(rows *sql.Rows) ([]domain.TrailEntry, error) {
	out := []domain.TrailEntry{}
	for rows.Next() {
		var (
			entry          domain.TrailEntry
			changeType     string
			initiatorClass string
			metadata       []byte
		)
		err := rows.Scan(
			&entry.ID, &entry.NodeID, &changeType, &entry.Field,
			&entry.PreviousValue, &entry.NewValue,
			&entry.DetectedAt, &entry.DetectionMethod, &entry.CorrelationID,
			&entry.Initiator, &initiatorClass, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan change row: %w", err)
		}
		entry.Type = domain.ChangeType(changeType)
		entry.InitiatorClass = domain.InitiatorClass(initiatorClass)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode trail metadata: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change rows: %w", err)
	}
	return out, nil
}
