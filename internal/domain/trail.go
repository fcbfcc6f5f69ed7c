package domain

import "time"

// ChangeType tags a trail entry with the graph mutation it describes, using
// the change vocabulary of the graph storage collaborator.
type ChangeType string

const (
	ChangeNodeCreated ChangeType = "node-created"
	ChangeNodeUpdated ChangeType = "node-updated"
	ChangeNodeDeleted ChangeType = "node-deleted"
)

// ChangeTypeForAction maps a requested action onto the collaborator's change
// vocabulary: creates and deletes keep their identity, everything else is an
// update to the node.
func ChangeTypeForAction(a ChangeAction) ChangeType {
	switch a {
	case ActionCreate:
		return ChangeNodeCreated
	case ActionDelete:
		return ChangeNodeDeleted
	}
	return ChangeNodeUpdated
}

// DetectionManual tags trail entries sourced from the governance path rather
// than from scanners.
const DetectionManual = "manual"

// TrailEntry is one append-only audit record. Entries are written for every
// request creation and every resolution, are never mutated or deleted, and
// are the durable source of truth independent of the in-process registry.
type TrailEntry struct {
	ID     string     `json:"id"`
	NodeID string     `json:"nodeId"`
	Type   ChangeType `json:"type"`

	// Field is a namespaced label: "governance:<action>" for creation
	// entries, "governance:approval" / "governance:rejection" for
	// resolutions.
	Field         string `json:"field"`
	PreviousValue string `json:"previousValue,omitempty"`
	NewValue      string `json:"newValue,omitempty"`

	DetectedAt      time.Time `json:"detectedAt"`
	DetectionMethod string    `json:"detectionMethod"`

	// CorrelationID equals the change request id so resolutions join up
	// with their creation entry.
	CorrelationID  string         `json:"correlationId"`
	Initiator      string         `json:"initiator"`
	InitiatorClass InitiatorClass `json:"initiatorClass"`

	// Metadata carries the risk score, risk level, and policy violations
	// observed at write time.
	Metadata Meta `json:"metadata,omitempty"`
}
