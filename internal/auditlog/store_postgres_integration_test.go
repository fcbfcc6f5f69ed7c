//go:build integration

package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/stretchr/testify/suite"

	"warden/internal/domain"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sql.DB
	store     *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("warden"),
		tcpostgres.WithUsername("warden"),
		tcpostgres.WithPassword("warden"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = sql.Open("postgres", connStr)
	s.Require().NoError(err)
	s.Require().NoError(s.db.PingContext(ctx))

	s.store = NewPostgresStore(s.db)
	s.Require().NoError(s.store.EnsureSchema(ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	ctx := context.Background()
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(ctx)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE change_log")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seed(n int, nodeID string, base time.Time) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		entry := domain.TrailEntry{
			ID:              fmt.Sprintf("trail-%s-%d", nodeID, i),
			NodeID:          nodeID,
			Type:            domain.ChangeNodeUpdated,
			Field:           "governance:update",
			PreviousValue:   "pending",
			NewValue:        "approved",
			DetectedAt:      base.Add(time.Duration(i) * time.Minute),
			DetectionMethod: domain.DetectionManual,
			CorrelationID:   "chg-" + nodeID,
			Initiator:       "alice",
			InitiatorClass:  domain.InitiatorHuman,
			Metadata: domain.Meta{
				"riskScore": domain.Number(42),
				"riskLevel": domain.String("medium"),
			},
		}
		s.Require().NoError(s.store.AppendChange(ctx, entry))
	}
}

func (s *PostgresStoreSuite) TestAppendAndRoundTrip() {
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.seed(1, "web", base)

	entries, err := s.store.ListByNode(ctx, "web", 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	got := entries[0]
	s.Equal("trail-web-0", got.ID)
	s.Equal(domain.ChangeNodeUpdated, got.Type)
	s.Equal("governance:update", got.Field)
	s.Equal("chg-web", got.CorrelationID)
	s.Equal(domain.InitiatorHuman, got.InitiatorClass)
	s.True(got.DetectedAt.Equal(base))
	s.Equal("medium", got.Metadata.Str("riskLevel"))
	s.InDelta(42, got.Metadata["riskScore"].Num(), 0.001)
}

func (s *PostgresStoreSuite) TestListByNodeFiltersAndOrders() {
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.seed(3, "web", base)
	s.seed(2, "db", base)

	entries, err := s.store.ListByNode(ctx, "web", 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal("trail-web-2", entries[0].ID)
	s.Equal("trail-web-0", entries[2].ID)
}

func (s *PostgresStoreSuite) TestListRecentHonorsLimit() {
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.seed(5, "web", base)

	entries, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("trail-web-4", entries[0].ID)
}

func (s *PostgresStoreSuite) TestDuplicateIDRejected() {
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.seed(1, "web", base)

	err := s.store.AppendChange(ctx, domain.TrailEntry{
		ID:              "trail-web-0",
		NodeID:          "web",
		Type:            domain.ChangeNodeUpdated,
		Field:           "governance:update",
		DetectedAt:      base,
		DetectionMethod: domain.DetectionManual,
		Initiator:       "alice",
		InitiatorClass:  domain.InitiatorHuman,
	})
	s.Error(err)
}
