package handler

import (
	"encoding/json"

	"warden/internal/domain"
	"warden/internal/governor"
	derrors "warden/pkg/domain-errors"
)

// InterceptRequest is the wire shape for POST /changes/intercept.
type InterceptRequest struct {
	Initiator      string          `json:"initiator"`
	InitiatorClass string          `json:"initiatorClass"`
	TargetID       string          `json:"targetId"`
	ResourceType   string          `json:"resourceType"`
	Provider       string          `json:"provider"`
	Action         string          `json:"action"`
	Description    string          `json:"description"`
	Metadata       json.RawMessage `json:"metadata"`
}

// ToDomain validates the wire request and builds the service request.
func (r InterceptRequest) ToDomain() (governor.InterceptRequest, error) {
	class, err := domain.ParseInitiatorClass(r.InitiatorClass)
	if err != nil {
		return governor.InterceptRequest{}, err
	}
	action, err := domain.ParseChangeAction(r.Action)
	if err != nil {
		return governor.InterceptRequest{}, err
	}

	var meta domain.Meta
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return governor.InterceptRequest{}, derrors.New(derrors.CodeBadRequest, "metadata must be a JSON object")
		}
	}

	return governor.InterceptRequest{
		Initiator:      r.Initiator,
		InitiatorClass: class,
		TargetID:       r.TargetID,
		ResourceType:   r.ResourceType,
		Provider:       r.Provider,
		Action:         action,
		Description:    r.Description,
		Metadata:       meta,
	}, nil
}

// ResolveRequest is the wire shape for approve/reject calls. The resolver
// identity comes from the authenticated context, not the body.
type ResolveRequest struct {
	Reason string `json:"reason"`
}
