// Package governor implements the change governance engine: every proposed
// infrastructure mutation passes through InterceptChange, which assesses
// risk, runs policy pre-checks, applies the approval state machine, and
// records the decision in the append-only audit trail.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/classify"
	"warden/internal/domain"
	"warden/internal/governor/metrics"
	"warden/internal/governor/ports"
	"warden/internal/policy"
	"warden/internal/risk"
	derrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// NotifyFunc receives a pending change request after its decision is durably
// recorded. Failures are swallowed: they are observable via logs and metrics
// only, never via the intercept result.
type NotifyFunc func(ctx context.Context, req *domain.ChangeRequest) error

// Service is the change governor. It is safe for concurrent use; intercepts
// of different targets never interfere, and resolution of one request id has
// exactly one winner.
type Service struct {
	cfg      Config
	graph    ports.GraphPort
	trail    ports.AuditPort
	registry Registry

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time

	mu        sync.RWMutex
	callbacks []NotifyFunc
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source (tests pin the off-hours factor with
// this).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// New constructs the governor with its collaborators.
func New(cfg Config, graph ports.GraphPort, trail ports.AuditPort, registry Registry, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg.withDefaults(),
		graph:    graph,
		trail:    trail,
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer("warden/governor"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InterceptRequest describes one proposed mutation.
type InterceptRequest struct {
	Initiator      string
	InitiatorClass domain.InitiatorClass
	TargetID       string
	ResourceType   string
	Provider       string
	Action         domain.ChangeAction
	Description    string
	Metadata       domain.Meta
}

func (r InterceptRequest) validate() error {
	if r.Initiator == "" {
		return derrors.New(derrors.CodeInvalidInput, "initiator is required")
	}
	if r.TargetID == "" {
		return derrors.New(derrors.CodeInvalidInput, "target id is required")
	}
	if _, err := domain.ParseInitiatorClass(string(r.InitiatorClass)); err != nil {
		return err
	}
	if _, err := domain.ParseChangeAction(string(r.Action)); err != nil {
		return err
	}
	return nil
}

// InterceptChange evaluates one proposed mutation and decides, once, whether
// it may proceed. The decision and its evidence are recorded in exactly one
// audit entry; pending outcomes additionally fan out to registered
// notification callbacks.
//
// Collaborator failures propagate and leave no audit entry: a risk that could
// not be computed is not a decision.
func (s *Service) InterceptChange(ctx context.Context, req InterceptRequest) (*domain.ChangeRequest, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "governor.InterceptChange",
		trace.WithAttributes(
			attribute.String("change.target_id", req.TargetID),
			attribute.String("change.action", string(req.Action)),
		))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	ev, err := s.gatherEvidence(ctx, req.TargetID)
	if err != nil {
		s.logger.ErrorContext(ctx, "evidence gathering failed",
			"target_id", req.TargetID,
			"action", req.Action,
			"error", err,
		)
		return nil, fmt.Errorf("gather evidence for %s: %w", req.TargetID, err)
	}

	var tags map[string]string
	var nodeMeta domain.Meta
	resourceType := req.ResourceType
	if ev.node != nil {
		tags = ev.node.Tags
		nodeMeta = ev.node.Metadata
		if ev.node.ResourceType != "" {
			resourceType = ev.node.ResourceType
		}
	}

	env := classify.Environment(tags, nodeMeta)
	accelerated := classify.IsAcceleratedWorkload(resourceType, tags, nodeMeta)
	now := s.clock()

	assessment := risk.Score(risk.Input{
		BlastRadiusSize:     ev.blast.Size(),
		MonthlyCostAtRisk:   ev.blast.TotalCostMonthly,
		DependentCount:      ev.dependentCount,
		Environment:         env,
		AcceleratedWorkload: accelerated,
		Hour:                now.Hour(),
		Action:              req.Action,
	})

	violations := []string{}
	if s.cfg.EnablePolicyChecks {
		violations = policy.Check(policy.CheckInput{
			Action:       req.Action,
			ResourceType: resourceType,
			Tags:         tags,
			Metadata:     nodeMeta,
			MonthlyCost:  ev.node.KnownMonthlyCost(),
			Accelerated:  accelerated,
		})
	}

	status := s.decide(req.InitiatorClass, assessment.Score, ev.blast.Size(), env, resourceType, violations)

	change := &domain.ChangeRequest{
		ID:               "chg-" + uuid.NewString(),
		CreatedAt:        now,
		Initiator:        req.Initiator,
		InitiatorClass:   req.InitiatorClass,
		TargetID:         req.TargetID,
		ResourceType:     resourceType,
		Provider:         req.Provider,
		Action:           req.Action,
		Description:      req.Description,
		Risk:             assessment,
		Status:           status,
		PolicyViolations: violations,
		Metadata: req.Metadata.Merge(domain.Meta{
			"blastRadiusSize":     domain.Number(float64(ev.blast.Size())),
			"costAtRisk":          domain.Number(ev.blast.TotalCostMonthly),
			"dependentCount":      domain.Number(float64(ev.dependentCount)),
			"environment":         domain.String(env),
			"acceleratedWorkload": domain.Bool(accelerated),
		}),
	}
	if status == domain.StatusAutoApproved {
		resolvedAt := now
		change.ResolvedAt = &resolvedAt
		change.ResolvedBy = domain.SystemActor
		change.ResolutionReason = fmt.Sprintf("auto-approved at risk score %d", assessment.Score)
	}

	if err := s.registry.Save(ctx, change); err != nil {
		return nil, fmt.Errorf("save change request: %w", err)
	}

	if err := s.trail.AppendChange(ctx, s.creationEntry(change)); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed for intercepted change",
			"request_id", change.ID,
			"error", err,
		)
		return nil, fmt.Errorf("append audit entry for %s: %w", change.ID, err)
	}

	span.SetAttributes(
		attribute.Int("change.risk_score", assessment.Score),
		attribute.String("change.status", string(status)),
	)
	s.metrics.IncrementDecision(string(status), string(req.Action))
	s.metrics.ObserveRiskScore(assessment.Score)
	s.metrics.ObserveInterceptLatency(time.Since(start))

	s.logger.InfoContext(ctx, "change intercepted",
		"request_id", change.ID,
		"target_id", change.TargetID,
		"action", change.Action,
		"initiator", change.Initiator,
		"initiator_class", change.InitiatorClass,
		"risk_score", assessment.Score,
		"risk_level", assessment.Level,
		"status", status,
		"violations", len(violations),
	)

	if status == domain.StatusPending {
		s.notifyApprovalRequired(ctx, change)
	}

	return change.Clone(), nil
}

// decide applies the approval policy, in order: policy violations, protected
// targets, the block threshold, the auto-approve band, then the medium band
// where only human initiators auto-approve.
func (s *Service) decide(class domain.InitiatorClass, score, blastSize int, env, resourceType string, violations []string) domain.RequestStatus {
	if len(violations) > 0 {
		return domain.StatusPending
	}
	if s.isProtected(env, resourceType) {
		return domain.StatusPending
	}
	if score > s.cfg.BlockThreshold {
		return domain.StatusPending
	}
	if score <= s.cfg.AutoApproveThreshold {
		if class == domain.InitiatorAgent && !s.cfg.AllowAgentAutoApprove {
			return domain.StatusPending
		}
		if blastSize > s.cfg.MaxAutoApproveBlastRadius {
			return domain.StatusPending
		}
		return domain.StatusAutoApproved
	}
	// Medium band: humans proceed, automation waits for a human.
	if class == domain.InitiatorHuman {
		return domain.StatusAutoApproved
	}
	return domain.StatusPending
}

func (s *Service) isProtected(env, resourceType string) bool {
	for _, protected := range s.cfg.ProtectedEnvironments {
		if strings.EqualFold(env, protected) {
			return true
		}
	}
	for _, protected := range s.cfg.ProtectedResourceTypes {
		if strings.EqualFold(resourceType, protected) {
			return true
		}
	}
	return false
}

// ApproveChange moves a pending request to approved. Returns nil, nil when
// the request does not exist or has already been resolved; on success one
// further audit entry records the resolution.
func (s *Service) ApproveChange(ctx context.Context, id, approver, reason string) (*domain.ChangeRequest, error) {
	return s.resolve(ctx, id, approver, reason, domain.StatusApproved)
}

// RejectChange moves a pending request to rejected. Same contract as
// ApproveChange.
func (s *Service) RejectChange(ctx context.Context, id, approver, reason string) (*domain.ChangeRequest, error) {
	return s.resolve(ctx, id, approver, reason, domain.StatusRejected)
}

func (s *Service) resolve(ctx context.Context, id, approver, reason string, to domain.RequestStatus) (*domain.ChangeRequest, error) {
	ctx, span := s.tracer.Start(ctx, "governor.Resolve",
		trace.WithAttributes(
			attribute.String("change.request_id", id),
			attribute.String("change.resolution", string(to)),
		))
	defer span.End()

	if approver == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "approver identity is required")
	}

	resolvedAt := s.clock()
	resolved, err := s.registry.Resolve(ctx, id, func(req *domain.ChangeRequest) {
		req.Status = to
		req.ResolvedAt = &resolvedAt
		req.ResolvedBy = approver
		req.ResolutionReason = reason
	})
	if err != nil {
		// Unknown id or a request that already left pending is a normal
		// outcome, not an error.
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
			s.logger.InfoContext(ctx, "resolution skipped",
				"request_id", id,
				"resolution", to,
				"reason", err,
			)
			return nil, nil
		}
		return nil, err
	}

	if err := s.trail.AppendChange(ctx, s.resolutionEntry(resolved)); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed for resolution",
			"request_id", id,
			"error", err,
		)
		return nil, fmt.Errorf("append audit entry for %s: %w", id, err)
	}

	s.metrics.IncrementResolution(string(to))
	s.logger.InfoContext(ctx, "change resolved",
		"request_id", id,
		"resolution", to,
		"resolved_by", approver,
	)
	return resolved, nil
}

// GetRequest returns the request, or nil, nil when unknown.
func (s *Service) GetRequest(ctx context.Context, id string) (*domain.ChangeRequest, error) {
	req, err := s.registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

// OnApprovalRequired registers a notification sink for pending decisions.
// Callbacks run best-effort after the decision is durably recorded.
func (s *Service) OnApprovalRequired(fn NotifyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// notifyApprovalRequired fans the request out to every registered callback.
// Errors and panics are logged and counted, then discarded.
func (s *Service) notifyApprovalRequired(ctx context.Context, req *domain.ChangeRequest) {
	s.mu.RLock()
	callbacks := make([]NotifyFunc, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.RUnlock()

	for _, fn := range callbacks {
		s.runCallback(ctx, fn, req)
	}
}

func (s *Service) runCallback(ctx context.Context, fn NotifyFunc, req *domain.ChangeRequest) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncrementNotifyFailure()
			s.logger.WarnContext(ctx, "notification callback panicked",
				"request_id", req.ID,
				"panic", r,
			)
		}
	}()

	if err := fn(ctx, req.Clone()); err != nil {
		s.metrics.IncrementNotifyFailure()
		s.logger.WarnContext(ctx, "notification callback failed",
			"request_id", req.ID,
			"error", err,
		)
	}
}

func (s *Service) creationEntry(req *domain.ChangeRequest) domain.TrailEntry {
	return domain.TrailEntry{
		ID:              uuid.NewString(),
		NodeID:          req.TargetID,
		Type:            domain.ChangeTypeForAction(req.Action),
		Field:           "governance:" + string(req.Action),
		NewValue:        fmt.Sprintf("%s %s: %s", req.Action, req.TargetID, string(req.Status)),
		DetectedAt:      req.CreatedAt,
		DetectionMethod: domain.DetectionManual,
		CorrelationID:   req.ID,
		Initiator:       req.Initiator,
		InitiatorClass:  req.InitiatorClass,
		Metadata:        trailMetadata(req),
	}
}

func (s *Service) resolutionEntry(req *domain.ChangeRequest) domain.TrailEntry {
	field := "governance:approval"
	if req.Status == domain.StatusRejected {
		field = "governance:rejection"
	}
	return domain.TrailEntry{
		ID:              uuid.NewString(),
		NodeID:          req.TargetID,
		Type:            domain.ChangeTypeForAction(req.Action),
		Field:           field,
		PreviousValue:   string(domain.StatusPending),
		NewValue:        string(req.Status),
		DetectedAt:      *req.ResolvedAt,
		DetectionMethod: domain.DetectionManual,
		CorrelationID:   req.ID,
		Initiator:       req.ResolvedBy,
		InitiatorClass:  domain.InitiatorHuman,
		Metadata:        trailMetadata(req),
	}
}

func trailMetadata(req *domain.ChangeRequest) domain.Meta {
	return domain.Meta{
		"riskScore":        domain.Number(float64(req.Risk.Score)),
		"riskLevel":        domain.String(string(req.Risk.Level)),
		"policyViolations": domain.String(strings.Join(req.PolicyViolations, "; ")),
	}
}
