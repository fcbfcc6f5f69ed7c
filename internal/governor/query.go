package governor

import (
	"context"
	"math"
	"sort"
	"time"

	"warden/internal/domain"
)

// TrailQuery filters the request registry. Zero-valued fields match
// everything; the time window is inclusive on both ends.
type TrailQuery struct {
	Initiator      string
	InitiatorClass domain.InitiatorClass
	TargetID       string
	Action         domain.ChangeAction
	Status         domain.RequestStatus
	Since          time.Time
	Until          time.Time
	// Limit caps the result after filtering and sorting; 0 means no cap.
	Limit int
}

func (q TrailQuery) matches(req *domain.ChangeRequest) bool {
	if q.Initiator != "" && req.Initiator != q.Initiator {
		return false
	}
	if q.InitiatorClass != "" && req.InitiatorClass != q.InitiatorClass {
		return false
	}
	if q.TargetID != "" && req.TargetID != q.TargetID {
		return false
	}
	if q.Action != "" && req.Action != q.Action {
		return false
	}
	if q.Status != "" && req.Status != q.Status {
		return false
	}
	if !q.Since.IsZero() && req.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && req.CreatedAt.After(q.Until) {
		return false
	}
	return true
}

// GetAuditTrail returns the matching requests, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, q TrailQuery) ([]*domain.ChangeRequest, error) {
	all, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ChangeRequest, 0, len(all))
	for _, req := range all {
		if q.matches(req) {
			out = append(out, req)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			// Stable output for requests created in the same instant.
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetPendingRequests is the status=pending trail query.
func (s *Service) GetPendingRequests(ctx context.Context) ([]*domain.ChangeRequest, error) {
	return s.GetAuditTrail(ctx, TrailQuery{Status: domain.StatusPending})
}

// SummaryWindow is the default trailing window for GetSummary.
const SummaryWindow = 7 * 24 * time.Hour

// Summary aggregates request counts for dashboards.
type Summary struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
	Total int       `json:"total"`

	ByStatus    map[domain.RequestStatus]int `json:"byStatus"`
	ByInitiator map[string]int               `json:"byInitiator"`
	ByRiskLevel map[domain.RiskLevel]int     `json:"byRiskLevel"`

	// WithViolations counts requests carrying at least one policy
	// violation.
	WithViolations int `json:"withViolations"`
	// AvgRiskScore is the integer-rounded mean score, 0 for an empty
	// window.
	AvgRiskScore int `json:"avgRiskScore"`
}

// GetSummary aggregates requests over a window. Nil bounds default to the
// trailing seven days ending now.
func (s *Service) GetSummary(ctx context.Context, since, until *time.Time) (*Summary, error) {
	end := s.clock()
	if until != nil {
		end = *until
	}
	start := end.Add(-SummaryWindow)
	if since != nil {
		start = *since
	}

	matching, err := s.GetAuditTrail(ctx, TrailQuery{Since: start, Until: end})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Since:       start,
		Until:       end,
		Total:       len(matching),
		ByStatus:    make(map[domain.RequestStatus]int),
		ByInitiator: make(map[string]int),
		ByRiskLevel: make(map[domain.RiskLevel]int),
	}

	scoreSum := 0
	for _, req := range matching {
		summary.ByStatus[req.Status]++
		summary.ByInitiator[req.Initiator]++
		summary.ByRiskLevel[req.Risk.Level]++
		if len(req.PolicyViolations) > 0 {
			summary.WithViolations++
		}
		scoreSum += req.Risk.Score
	}
	if len(matching) > 0 {
		summary.AvgRiskScore = int(math.Round(float64(scoreSum) / float64(len(matching))))
	}
	return summary, nil
}
