// Package classify derives governance signals from a resource's tags and
// metadata. This is pure domain logic - no I/O, no side effects.
package classify

import (
	"regexp"

	"warden/internal/domain"
)

// EnvironmentUnknown is reported when no recognized environment signal is
// present. Scoring deliberately treats "no signal" as riskier than an
// explicitly non-production name.
const EnvironmentUnknown = "unknown"

// environmentTagKeys is the first-match-wins precedence for environment tags.
var environmentTagKeys = []string{
	"Environment", "environment", "env", "Env", "stage", "Stage",
}

// Environment resolves a node's environment classification from its tags,
// falling back to the metadata field "environment", then EnvironmentUnknown.
func Environment(tags map[string]string, meta domain.Meta) string {
	for _, key := range environmentTagKeys {
		if v, ok := tags[key]; ok && v != "" {
			return v
		}
	}
	if v := meta.Str("environment"); v != "" {
		return v
	}
	return EnvironmentUnknown
}

// acceleratedResourceTypes are resource types that imply GPU/AI workloads
// regardless of tagging.
var acceleratedResourceTypes = map[string]bool{
	"sagemaker-endpoint": true,
	"sagemaker-notebook": true,
	"bedrock-model":      true,
	"gpu-instance":       true,
	"eks-cluster":        true,
}

// acceleratedInstancePattern matches accelerated instance-type families
// (p2-p5, g4-g6, inf1/2, trn1/2, dl1/2), including letter variants between
// the family and the size, like p4d or g4dn.
var acceleratedInstancePattern = regexp.MustCompile(`(?i)^(p[2-5]|g[4-6]|inf[12]|trn[12]|dl[12])[a-z]*\.`)

// workloadTagKeys are tags that mark a workload as GPU/AI when truthy.
var workloadTagKeys = []string{"gpu", "ai-workload", "ml-workload"}

// IsAcceleratedWorkload reports whether the target is a GPU/AI workload:
// an allow-listed resource type, an accelerated instance type in metadata,
// or an affirmative workload tag.
func IsAcceleratedWorkload(resourceType string, tags map[string]string, meta domain.Meta) bool {
	if acceleratedResourceTypes[resourceType] {
		return true
	}
	if it := meta.Str("instanceType"); it != "" && acceleratedInstancePattern.MatchString(it) {
		return true
	}
	for _, key := range workloadTagKeys {
		if domain.String(tags[key]).Truthy() {
			return true
		}
	}
	return false
}
