package governor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/internal/domain"
)

// evidence is everything the governor learns about a target from its
// collaborators before deciding. Each intercept gathers its own snapshot;
// under concurrent writes to the same target, snapshots of different
// intercepts may be mutually inconsistent (accepted, see DESIGN.md).
type evidence struct {
	// node is nil when the target does not exist yet (normal for creates).
	node           *domain.Node
	blast          domain.BlastRadius
	dependentCount int
}

// gatherEvidence runs the collaborator queries in parallel with a shared
// timeout. Any failure aborts the whole gather: the engine never guesses a
// risk score from partial data.
func (s *Service) gatherEvidence(ctx context.Context, targetID string) (*evidence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EvidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	ev := &evidence{}

	g.Go(func() error {
		start := time.Now()
		node, err := s.graph.GetNode(ctx, targetID)
		s.metrics.ObserveEvidenceLatency("node", time.Since(start))
		if err != nil {
			return err
		}
		ev.node = node
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		blast, err := s.graph.GetBlastRadius(ctx, targetID, s.cfg.BlastRadiusDepth)
		s.metrics.ObserveEvidenceLatency("blast_radius", time.Since(start))
		if err != nil {
			return err
		}
		ev.blast = blast
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		edges, err := s.graph.GetEdgesForNode(ctx, targetID, domain.DirectionDownstream)
		s.metrics.ObserveEvidenceLatency("dependents", time.Since(start))
		if err != nil {
			return err
		}
		ev.dependentCount = len(edges)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ev, nil
}
