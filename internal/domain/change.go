package domain

import (
	"time"

	derrors "warden/pkg/domain-errors"
)

// ChangeAction enumerates the infrastructure mutations the governor intercepts.
//
// Usage: construct via ParseChangeAction at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type ChangeAction string

const (
	ActionCreate      ChangeAction = "create"
	ActionUpdate      ChangeAction = "update"
	ActionDelete      ChangeAction = "delete"
	ActionScale       ChangeAction = "scale"
	ActionReconfigure ChangeAction = "reconfigure"
)

// validActions is the single source of truth for supported actions.
var validActions = map[ChangeAction]bool{
	ActionCreate:      true,
	ActionUpdate:      true,
	ActionDelete:      true,
	ActionScale:       true,
	ActionReconfigure: true,
}

// ParseChangeAction constructs a ChangeAction from external input.
func ParseChangeAction(s string) (ChangeAction, error) {
	a := ChangeAction(s)
	if !validActions[a] {
		return "", derrors.Newf(derrors.CodeInvalidInput, "unsupported action %q", s)
	}
	return a, nil
}

// InitiatorClass identifies who proposed a change.
type InitiatorClass string

const (
	InitiatorHuman  InitiatorClass = "human"
	InitiatorAgent  InitiatorClass = "agent"
	InitiatorSystem InitiatorClass = "system"
)

var validInitiatorClasses = map[InitiatorClass]bool{
	InitiatorHuman:  true,
	InitiatorAgent:  true,
	InitiatorSystem: true,
}

// ParseInitiatorClass constructs an InitiatorClass from external input.
func ParseInitiatorClass(s string) (InitiatorClass, error) {
	c := InitiatorClass(s)
	if !validInitiatorClasses[c] {
		return "", derrors.Newf(derrors.CodeInvalidInput, "unsupported initiator class %q", s)
	}
	return c, nil
}

// RequestStatus is the lifecycle state of a change request.
// pending is the only state with outgoing transitions; the others are terminal.
type RequestStatus string

const (
	StatusPending      RequestStatus = "pending"
	StatusApproved     RequestStatus = "approved"
	StatusRejected     RequestStatus = "rejected"
	StatusAutoApproved RequestStatus = "auto-approved"
)

var validStatuses = map[RequestStatus]bool{
	StatusPending:      true,
	StatusApproved:     true,
	StatusRejected:     true,
	StatusAutoApproved: true,
}

// ParseRequestStatus constructs a RequestStatus from external input.
func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(s)
	if !validStatuses[st] {
		return "", derrors.Newf(derrors.CodeInvalidInput, "unsupported status %q", s)
	}
	return st, nil
}

// SystemActor is the resolver identity recorded for auto-approved requests.
const SystemActor = "system"

// RiskLevel buckets a risk score for humans and dashboards.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is an immutable value produced once per request at intercept
// time and never recomputed. Factors lists one human-readable explanation per
// non-zero contributing signal, in evaluation order.
type RiskAssessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// ChangeRequest is the central governance entity: created once per intercepted
// mutation and mutated exactly once (the status transition) thereafter.
//
// Invariants: ResolvedAt and ResolvedBy are set iff Status != pending;
// ResolvedBy equals SystemActor only when Status == auto-approved. Once a
// request leaves pending it is immutable.
type ChangeRequest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Initiator      string         `json:"initiator"`
	InitiatorClass InitiatorClass `json:"initiatorClass"`

	TargetID     string       `json:"targetId"`
	ResourceType string       `json:"resourceType"`
	Provider     string       `json:"provider"`
	Action       ChangeAction `json:"action"`
	Description  string       `json:"description,omitempty"`

	Risk RiskAssessment `json:"risk"`

	Status           RequestStatus `json:"status"`
	ResolvedAt       *time.Time    `json:"resolvedAt,omitempty"`
	ResolvedBy       string        `json:"resolvedBy,omitempty"`
	ResolutionReason string        `json:"resolutionReason,omitempty"`

	PolicyViolations []string `json:"policyViolations"`

	// Metadata merges caller-supplied fields with engine-computed context
	// (blast radius size, cost at risk, dependent count, environment,
	// accelerated-workload flag).
	Metadata Meta `json:"metadata,omitempty"`
}

// Resolved reports whether the request has left pending.
func (r *ChangeRequest) Resolved() bool {
	return r.Status != StatusPending
}

// Clone returns a deep copy so callers can hand requests across goroutines
// without sharing mutable state.
func (r *ChangeRequest) Clone() *ChangeRequest {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		cp.ResolvedAt = &t
	}
	cp.Risk.Factors = append([]string(nil), r.Risk.Factors...)
	cp.PolicyViolations = append([]string(nil), r.PolicyViolations...)
	cp.Metadata = r.Metadata.Clone()
	return &cp
}
