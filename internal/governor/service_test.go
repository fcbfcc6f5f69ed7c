package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/domain"
)

// businessHours pins the clock away from the off-hours scoring window.
var businessHours = time.Date(2026, 6, 10, 14, 0, 0, 0, time.Local)

type fakeGraph struct {
	mu    sync.Mutex
	nodes map[string]*domain.Node
	blast map[string]domain.BlastRadius
	edges map[string][]domain.Edge
	err   error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: make(map[string]*domain.Node),
		blast: make(map[string]domain.BlastRadius),
		edges: make(map[string][]domain.Edge),
	}
}

func (g *fakeGraph) GetNode(_ context.Context, id string) (*domain.Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.nodes[id], nil
}

func (g *fakeGraph) GetBlastRadius(_ context.Context, id string, _ int) (domain.BlastRadius, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return domain.BlastRadius{}, g.err
	}
	return g.blast[id], nil
}

func (g *fakeGraph) GetEdgesForNode(_ context.Context, id string, _ domain.EdgeDirection) ([]domain.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.edges[id], nil
}

type fakeTrail struct {
	mu      sync.Mutex
	entries []domain.TrailEntry
	err     error
}

func (t *fakeTrail) AppendChange(_ context.Context, entry domain.TrailEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.entries = append(t.entries, entry)
	return nil
}

func (t *fakeTrail) all() []domain.TrailEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TrailEntry{}, t.entries...)
}

type GovernorSuite struct {
	suite.Suite
	graph *fakeGraph
	trail *fakeTrail
	svc   *Service
}

func TestGovernorSuite(t *testing.T) {
	suite.Run(t, new(GovernorSuite))
}

func (s *GovernorSuite) SetupTest() {
	s.graph = newFakeGraph()
	s.trail = &fakeTrail{}
	s.svc = s.newService(DefaultConfig())
}

func (s *GovernorSuite) newService(cfg Config) *Service {
	return New(cfg, s.graph, s.trail, NewInMemoryRegistry(),
		WithLogger(slog.Default()),
		WithClock(func() time.Time { return businessHours }),
	)
}

func (s *GovernorSuite) intercept(req InterceptRequest) *domain.ChangeRequest {
	change, err := s.svc.InterceptChange(context.Background(), req)
	s.Require().NoError(err)
	s.Require().NotNil(change)
	return change
}

func costOf(v float64) *float64 { return &v }

// TestQuietHumanUpdateAutoApproves covers the lowest-risk path: human
// initiator, no blast radius, explicitly non-production environment.
func (s *GovernorSuite) TestQuietHumanUpdateAutoApproves() {
	s.graph.nodes["app-1"] = &domain.Node{
		ID:           "app-1",
		ResourceType: "ec2-instance",
		Tags:         map[string]string{"Environment": "dev", "team": "payments"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-1",
		ResourceType:   "ec2-instance",
		Action:         domain.ActionUpdate,
	})

	s.Equal(domain.StatusAutoApproved, change.Status)
	s.Equal(domain.RiskLow, change.Risk.Level)
	s.Equal(domain.SystemActor, change.ResolvedBy)
	s.Require().NotNil(change.ResolvedAt)
	s.Empty(change.PolicyViolations)
	s.Equal("dev", change.Metadata.Str("environment"))
}

// TestProductionDeleteByAgentBlocks covers the high-risk path: wide blast
// radius, production tag, destructive action.
func (s *GovernorSuite) TestProductionDeleteByAgentBlocks() {
	s.graph.nodes["db-1"] = &domain.Node{
		ID:           "db-1",
		ResourceType: "rds-instance",
		Tags:         map[string]string{"Environment": "production"},
		MonthlyCost:  costOf(2000),
	}
	s.graph.blast["db-1"] = domain.BlastRadius{
		Nodes:            manyNodes(15),
		TotalCostMonthly: 2000,
	}
	s.graph.edges["db-1"] = manyEdges("db-1", 8)

	change := s.intercept(InterceptRequest{
		Initiator:      "deploy-bot",
		InitiatorClass: domain.InitiatorAgent,
		TargetID:       "db-1",
		Action:         domain.ActionDelete,
	})

	s.Equal(domain.StatusPending, change.Status)
	s.Greater(change.Risk.Score, 70)
	s.Contains([]domain.RiskLevel{domain.RiskHigh, domain.RiskCritical}, change.Risk.Level)
	s.Nil(change.ResolvedAt)
	s.Empty(change.ResolvedBy)
}

func (s *GovernorSuite) TestPublicStorageForcesPendingRegardlessOfScore() {
	s.graph.nodes["bkt-1"] = &domain.Node{
		ID:           "bkt-1",
		ResourceType: "s3-bucket",
		Tags:         map[string]string{"Environment": "dev"},
		Metadata:     domain.Meta{"publicAccessEnabled": domain.Bool(true)},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "bkt-1",
		Action:         domain.ActionUpdate,
	})

	s.NotEmpty(change.PolicyViolations)
	s.Equal(domain.StatusPending, change.Status)
	s.LessOrEqual(change.Risk.Score, 30, "violation must force pending even below the auto-approve threshold")
}

func (s *GovernorSuite) TestUntaggedGPUInstanceViolatesCostAllocation() {
	s.graph.nodes["gpu-1"] = &domain.Node{
		ID:           "gpu-1",
		ResourceType: "ec2-instance",
		Tags:         map[string]string{"Environment": "dev"},
		Metadata:     domain.Meta{"instanceType": domain.String("p4d.24xlarge")},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "gpu-1",
		Action:         domain.ActionUpdate,
	})

	s.Require().Len(change.PolicyViolations, 1)
	s.Contains(change.PolicyViolations[0], "cost allocation tag")
	s.Equal(domain.StatusPending, change.Status)
	s.True(change.Metadata.Truthy("acceleratedWorkload"))
}

func (s *GovernorSuite) TestProtectedEnvironmentForcesPending() {
	s.graph.nodes["api-1"] = &domain.Node{
		ID:           "api-1",
		ResourceType: "lambda-function",
		Tags:         map[string]string{"Environment": "prod", "team": "api"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "api-1",
		Action:         domain.ActionScale,
	})

	s.Equal(domain.StatusPending, change.Status)
}

func (s *GovernorSuite) TestProtectedResourceTypeForcesPending() {
	cfg := DefaultConfig()
	cfg.ProtectedResourceTypes = []string{"kms-key"}
	s.svc = s.newService(cfg)

	s.graph.nodes["key-1"] = &domain.Node{
		ID:           "key-1",
		ResourceType: "kms-key",
		Tags:         map[string]string{"Environment": "dev"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "key-1",
		Action:         domain.ActionUpdate,
	})

	s.Equal(domain.StatusPending, change.Status)
}

func (s *GovernorSuite) TestAgentAutoApproveCanBeDisabled() {
	cfg := DefaultConfig()
	cfg.AllowAgentAutoApprove = false
	s.svc = s.newService(cfg)

	s.graph.nodes["app-2"] = &domain.Node{
		ID:           "app-2",
		ResourceType: "ec2-instance",
		Tags:         map[string]string{"Environment": "dev"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "deploy-bot",
		InitiatorClass: domain.InitiatorAgent,
		TargetID:       "app-2",
		Action:         domain.ActionUpdate,
	})

	s.Equal(0, change.Risk.Score)
	s.Equal(domain.StatusPending, change.Status)
}

func (s *GovernorSuite) TestBlastRadiusCeilingBlocksAutoApproval() {
	s.graph.nodes["net-1"] = &domain.Node{
		ID:           "net-1",
		ResourceType: "security-group",
		Tags:         map[string]string{"Environment": "dev"},
	}
	s.graph.blast["net-1"] = domain.BlastRadius{Nodes: manyNodes(6)}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "net-1",
		Action:         domain.ActionUpdate,
	})

	s.LessOrEqual(change.Risk.Score, 30)
	s.Equal(domain.StatusPending, change.Status)
}

func (s *GovernorSuite) TestMediumBandAutoApprovesHumansOnly() {
	// Unknown environment + dependents + blast lands in (30, 70].
	for i, class := range []domain.InitiatorClass{domain.InitiatorHuman, domain.InitiatorAgent, domain.InitiatorSystem} {
		id := fmt.Sprintf("svc-%d", i)
		s.graph.blast[id] = domain.BlastRadius{Nodes: manyNodes(10)}
		s.graph.edges[id] = manyEdges(id, 10)

		change := s.intercept(InterceptRequest{
			Initiator:      string(class) + "-initiator",
			InitiatorClass: class,
			TargetID:       id,
			Action:         domain.ActionUpdate,
		})

		s.Greater(change.Risk.Score, 30)
		s.LessOrEqual(change.Risk.Score, 70)
		if class == domain.InitiatorHuman {
			s.Equal(domain.StatusAutoApproved, change.Status)
		} else {
			s.Equal(domain.StatusPending, change.Status, string(class))
		}
	}
}

func (s *GovernorSuite) TestCreateOfMissingNodeIsAccepted() {
	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "new-bucket",
		ResourceType:   "s3-bucket",
		Action:         domain.ActionCreate,
	})

	// Absent node means no environment signal: 30% of the environment
	// weight, still in the auto-approve band.
	s.Equal(6, change.Risk.Score)
	s.Equal(domain.StatusAutoApproved, change.Status)
	s.Equal("unknown", change.Metadata.Str("environment"))
}

func (s *GovernorSuite) TestResolutionLifecycle() {
	s.graph.nodes["q-1"] = &domain.Node{
		ID:           "q-1",
		ResourceType: "sqs-queue",
		Tags:         map[string]string{"Environment": "production"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "deploy-bot",
		InitiatorClass: domain.InitiatorAgent,
		TargetID:       "q-1",
		Action:         domain.ActionReconfigure,
	})
	s.Require().Equal(domain.StatusPending, change.Status)

	approved, err := s.svc.ApproveChange(context.Background(), change.ID, "carol", "reviewed capacity plan")
	s.Require().NoError(err)
	s.Require().NotNil(approved)
	s.Equal(domain.StatusApproved, approved.Status)
	s.Equal("carol", approved.ResolvedBy)
	s.Equal("reviewed capacity plan", approved.ResolutionReason)
	s.Require().NotNil(approved.ResolvedAt)

	// Second resolution of any kind is a no-op.
	again, err := s.svc.RejectChange(context.Background(), change.ID, "mallory", "too risky")
	s.Require().NoError(err)
	s.Nil(again)

	current, err := s.svc.GetRequest(context.Background(), change.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusApproved, current.Status)
	s.Equal("carol", current.ResolvedBy)
	s.Equal("reviewed capacity plan", current.ResolutionReason)
}

func (s *GovernorSuite) TestRejectingAutoApprovedRequestIsNoOp() {
	s.graph.nodes["app-3"] = &domain.Node{
		ID:           "app-3",
		ResourceType: "ec2-instance",
		Tags:         map[string]string{"Environment": "dev"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-3",
		Action:         domain.ActionUpdate,
	})
	s.Require().Equal(domain.StatusAutoApproved, change.Status)

	rejected, err := s.svc.RejectChange(context.Background(), change.ID, "mallory", "no")
	s.Require().NoError(err)
	s.Nil(rejected)

	current, err := s.svc.GetRequest(context.Background(), change.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusAutoApproved, current.Status)
	s.Equal(domain.SystemActor, current.ResolvedBy)
}

func (s *GovernorSuite) TestResolvingUnknownRequestReturnsNil() {
	resolved, err := s.svc.ApproveChange(context.Background(), "chg-missing", "carol", "")
	s.Require().NoError(err)
	s.Nil(resolved)
}

// TestAuditEntryAccounting verifies exactly one entry per creation and one
// per successful resolution.
func (s *GovernorSuite) TestAuditEntryAccounting() {
	s.graph.nodes["q-2"] = &domain.Node{
		ID:           "q-2",
		ResourceType: "sqs-queue",
		Tags:         map[string]string{"Environment": "production"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "deploy-bot",
		InitiatorClass: domain.InitiatorAgent,
		TargetID:       "q-2",
		Action:         domain.ActionDelete,
	})
	s.Require().Len(s.trail.all(), 1)

	creation := s.trail.all()[0]
	s.Equal(change.ID, creation.CorrelationID)
	s.Equal("governance:delete", creation.Field)
	s.Equal(domain.ChangeNodeDeleted, creation.Type)
	s.Equal(domain.DetectionManual, creation.DetectionMethod)

	_, err := s.svc.RejectChange(context.Background(), change.ID, "carol", "decommission window closed")
	s.Require().NoError(err)
	s.Require().Len(s.trail.all(), 2)

	resolution := s.trail.all()[1]
	s.Equal(change.ID, resolution.CorrelationID)
	s.Equal("governance:rejection", resolution.Field)
	s.Equal(string(domain.StatusPending), resolution.PreviousValue)
	s.Equal(string(domain.StatusRejected), resolution.NewValue)

	// Failed re-resolution writes nothing.
	_, err = s.svc.ApproveChange(context.Background(), change.ID, "dave", "")
	s.Require().NoError(err)
	s.Len(s.trail.all(), 2)
}

func (s *GovernorSuite) TestCollaboratorFailureLeavesNoTrace() {
	s.graph.err = errors.New("graph engine unavailable")

	_, err := s.svc.InterceptChange(context.Background(), InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-9",
		Action:         domain.ActionUpdate,
	})

	s.Require().Error(err)
	s.Empty(s.trail.all())
	pending, listErr := s.svc.GetAuditTrail(context.Background(), TrailQuery{})
	s.Require().NoError(listErr)
	s.Empty(pending)
}

func (s *GovernorSuite) TestInvalidInputRejectedBeforeEvidence() {
	_, err := s.svc.InterceptChange(context.Background(), InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-1",
		Action:         domain.ChangeAction("destroy-all"),
	})
	s.Require().Error(err)

	_, err = s.svc.InterceptChange(context.Background(), InterceptRequest{
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-1",
		Action:         domain.ActionUpdate,
	})
	s.Require().Error(err)
}

func (s *GovernorSuite) TestNotificationFanOut() {
	var mu sync.Mutex
	var notified []string

	s.svc.OnApprovalRequired(func(_ context.Context, req *domain.ChangeRequest) error {
		return errors.New("chat webhook down")
	})
	s.svc.OnApprovalRequired(func(_ context.Context, req *domain.ChangeRequest) error {
		panic("ticketing client bug")
	})
	s.svc.OnApprovalRequired(func(_ context.Context, req *domain.ChangeRequest) error {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, req.ID)
		return nil
	})

	s.graph.nodes["q-3"] = &domain.Node{
		ID:           "q-3",
		ResourceType: "sqs-queue",
		Tags:         map[string]string{"Environment": "production"},
	}

	change := s.intercept(InterceptRequest{
		Initiator:      "deploy-bot",
		InitiatorClass: domain.InitiatorAgent,
		TargetID:       "q-3",
		Action:         domain.ActionUpdate,
	})

	s.Equal(domain.StatusPending, change.Status)
	mu.Lock()
	defer mu.Unlock()
	s.Equal([]string{change.ID}, notified, "later callbacks must run despite earlier failures")
}

func (s *GovernorSuite) TestAutoApprovalsDoNotNotify() {
	called := false
	s.svc.OnApprovalRequired(func(context.Context, *domain.ChangeRequest) error {
		called = true
		return nil
	})

	s.graph.nodes["app-4"] = &domain.Node{
		ID:           "app-4",
		ResourceType: "ec2-instance",
		Tags:         map[string]string{"Environment": "dev"},
	}

	s.intercept(InterceptRequest{
		Initiator:      "alice",
		InitiatorClass: domain.InitiatorHuman,
		TargetID:       "app-4",
		Action:         domain.ActionUpdate,
	})

	s.False(called)
}

func manyNodes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("node-%d", i)
	}
	return out
}

func manyEdges(from string, n int) []domain.Edge {
	out := make([]domain.Edge, n)
	for i := range out {
		out[i] = domain.Edge{From: from, To: fmt.Sprintf("dep-%d", i), Relation: "depends-on"}
	}
	return out
}
