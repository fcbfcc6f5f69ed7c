// Package policy evaluates deterministic pre-checks against the target of a
// proposed change. This is pure domain logic - no state, no I/O.
//
// Violations are data, not errors: any violation forces the change into
// manual review regardless of its computed risk score. Rules are additive and
// independent, but are evaluated in a fixed order so the violation list is
// reproducible.
package policy

import (
	"fmt"
	"strings"

	"warden/internal/domain"
)

// deleteCostThreshold is the known monthly cost (USD) above which deleting a
// resource requires a manual look.
const deleteCostThreshold = 1000.0

// costAllocationTagKeys are the tag keys recognized as cost-allocation
// markers for accelerated workloads.
var costAllocationTagKeys = []string{
	"cost-center", "CostCenter", "cost_center",
	"billing-code", "BillingCode",
	"team", "project", "Project",
}

// CheckInput describes the target as observed at intercept time.
type CheckInput struct {
	Action       domain.ChangeAction
	ResourceType string
	Tags         map[string]string
	Metadata     domain.Meta
	// MonthlyCost is the target's known monthly cost, 0 when unknown.
	MonthlyCost float64
	// Accelerated marks GPU/AI workloads (see internal/classify).
	Accelerated bool
}

// Check runs every pre-check rule and returns the violations found. The
// result is an empty slice, never nil, when the target is clean.
func Check(in CheckInput) []string {
	violations := []string{}

	// Rule 1: accelerated workloads must carry a cost-allocation tag
	// unless they are being torn down.
	if in.Accelerated && in.Action != domain.ActionDelete && !hasCostAllocationTag(in.Tags) {
		violations = append(violations,
			"GPU/AI workload has no recognized cost allocation tag")
	}

	// Rule 2: publicly accessible storage is never waved through.
	if isStorageType(in.ResourceType) && in.Metadata.Truthy("publicAccessEnabled") {
		violations = append(violations,
			fmt.Sprintf("storage resource %q has public access enabled", in.ResourceType))
	}

	// Rule 3: deleting anything above the cost threshold needs eyes on it.
	if in.Action == domain.ActionDelete && in.MonthlyCost > deleteCostThreshold {
		violations = append(violations,
			fmt.Sprintf("delete of resource costing $%.2f/month exceeds $%.0f threshold",
				in.MonthlyCost, deleteCostThreshold))
	}

	return violations
}

func hasCostAllocationTag(tags map[string]string) bool {
	for _, key := range costAllocationTagKeys {
		if tags[key] != "" {
			return true
		}
	}
	return false
}

func isStorageType(resourceType string) bool {
	lower := strings.ToLower(resourceType)
	return strings.Contains(lower, "bucket") || strings.Contains(lower, "storage")
}
