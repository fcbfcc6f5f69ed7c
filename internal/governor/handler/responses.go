package handler

import (
	"net/http"
	"strconv"
	"time"

	"warden/internal/domain"
	"warden/internal/governor"
	derrors "warden/pkg/domain-errors"
)

// trailResponse wraps list results so the payload can grow without breaking
// callers.
type trailResponse struct {
	Requests []*domain.ChangeRequest `json:"requests"`
	Count    int                     `json:"count"`
}

// trailQueryFromURL parses the GET /changes filter parameters.
func trailQueryFromURL(r *http.Request) (governor.TrailQuery, error) {
	q := governor.TrailQuery{
		Initiator: r.URL.Query().Get("initiator"),
		TargetID:  r.URL.Query().Get("targetId"),
	}

	if raw := r.URL.Query().Get("initiatorClass"); raw != "" {
		class, err := domain.ParseInitiatorClass(raw)
		if err != nil {
			return governor.TrailQuery{}, err
		}
		q.InitiatorClass = class
	}
	if raw := r.URL.Query().Get("action"); raw != "" {
		action, err := domain.ParseChangeAction(raw)
		if err != nil {
			return governor.TrailQuery{}, err
		}
		q.Action = action
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseRequestStatus(raw)
		if err != nil {
			return governor.TrailQuery{}, err
		}
		q.Status = status
	}
	if since, err := timeParam(r, "since"); err != nil {
		return governor.TrailQuery{}, err
	} else if since != nil {
		q.Since = *since
	}
	if until, err := timeParam(r, "until"); err != nil {
		return governor.TrailQuery{}, err
	} else if until != nil {
		q.Until = *until
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return governor.TrailQuery{}, derrors.New(derrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		q.Limit = limit
	}
	return q, nil
}

// timeParam parses an optional RFC3339 query parameter.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, derrors.Newf(derrors.CodeBadRequest, "%s must be RFC3339", name)
	}
	return &t, nil
}
