package domain

// Node is the engine's view of a resource held by the graph storage
// collaborator. Only the attributes the governor inspects are modeled here.
type Node struct {
	ID           string
	ResourceType string
	Provider     string
	Tags         map[string]string
	Metadata     Meta
	// MonthlyCost is the known monthly cost in USD, nil when the
	// collaborator has no cost signal for the node.
	MonthlyCost *float64
}

// KnownMonthlyCost returns the cost signal, 0 when absent.
func (n *Node) KnownMonthlyCost() float64 {
	if n == nil || n.MonthlyCost == nil {
		return 0
	}
	return *n.MonthlyCost
}

// EdgeDirection selects which side of a node's edges to traverse.
type EdgeDirection string

const (
	DirectionDownstream EdgeDirection = "downstream"
	DirectionUpstream   EdgeDirection = "upstream"
)

// Edge is a dependency relation between two nodes, pointing from a resource
// to one that depends on it.
type Edge struct {
	From     string
	To       string
	Relation string
}

// BlastRadius is the transitive impact of a change to one node, as computed
// by the graph-engine collaborator.
type BlastRadius struct {
	// Nodes holds the ids of transitively affected resources, excluding
	// the target itself.
	Nodes []string
	// TotalCostMonthly is the aggregate monthly cost of the affected set.
	TotalCostMonthly float64
}

// Size returns the number of affected resources.
func (b BlastRadius) Size() int { return len(b.Nodes) }
