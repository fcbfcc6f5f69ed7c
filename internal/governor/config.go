package governor

import "time"

// Config tunes the approval state machine. The zero value is not usable;
// start from DefaultConfig and override fields.
type Config struct {
	// AutoApproveThreshold is the score at or below which a change may be
	// auto-approved.
	AutoApproveThreshold int
	// BlockThreshold is the score above which a change always goes to
	// manual review.
	BlockThreshold int
	// EnablePolicyChecks toggles the pre-check evaluator.
	EnablePolicyChecks bool
	// AllowAgentAutoApprove lets agent-initiated changes use the
	// auto-approve band; when false, agents always go to review below the
	// block threshold.
	AllowAgentAutoApprove bool
	// MaxAutoApproveBlastRadius caps the affected-resource count an
	// auto-approval may carry.
	MaxAutoApproveBlastRadius int
	// ProtectedEnvironments force manual review regardless of score
	// (matched case-insensitively against the detected environment).
	ProtectedEnvironments []string
	// ProtectedResourceTypes force manual review regardless of score.
	ProtectedResourceTypes []string

	// BlastRadiusDepth bounds the graph traversal the engine requests.
	BlastRadiusDepth int
	// EvidenceTimeout bounds the parallel collaborator queries of one
	// intercept.
	EvidenceTimeout time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold:      30,
		BlockThreshold:            70,
		EnablePolicyChecks:        true,
		AllowAgentAutoApprove:     true,
		MaxAutoApproveBlastRadius: 5,
		ProtectedEnvironments:     []string{"production", "prod"},
		ProtectedResourceTypes:    []string{},
		BlastRadiusDepth:          3,
		EvidenceTimeout:           10 * time.Second,
	}
}

// withDefaults fills unset operational fields so partially built configs
// stay usable in tests.
func (c Config) withDefaults() Config {
	if c.BlastRadiusDepth <= 0 {
		c.BlastRadiusDepth = 3
	}
	if c.EvidenceTimeout <= 0 {
		c.EvidenceTimeout = 10 * time.Second
	}
	return c
}
