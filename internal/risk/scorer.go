// Package risk computes the multi-factor risk assessment for a proposed
// infrastructure change. This is pure domain logic - no state, no I/O, no
// failure modes; missing optional inputs contribute nothing.
//
// The weights, saturation rules, and factor ordering are part of the audit
// contract: assessments written months apart must be comparable bit for bit,
// so do not reorder factors or fold constants.
package risk

import (
	"fmt"
	"math"
	"strings"

	"warden/internal/domain"
)

// Factor weights. They sum to 100 at saturation.
const (
	weightBlastRadius = 25.0
	weightCost        = 20.0
	weightDependents  = 15.0
	weightEnvironment = 20.0
	weightAccelerated = 10.0
	weightOffHours    = 5.0
	weightDestructive = 5.0
)

// Saturation points.
const (
	blastRadiusCap = 20   // affected resources at which blast radius saturates
	dependentsCap  = 10   // direct dependents at which the factor saturates
	costCapMonthly = 5000 // USD/month at which the logarithmic cost ramp saturates
)

// Off-hours window: before 06:00 or after 22:00 local.
const (
	offHoursMorning = 6
	offHoursEvening = 22
)

// Level thresholds (inclusive upper bounds).
const (
	levelLowMax    = 20
	levelMediumMax = 50
	levelHighMax   = 75
)

// Input carries the normalized observable attributes of one change.
type Input struct {
	// BlastRadiusSize counts transitively affected resources.
	BlastRadiusSize int
	// MonthlyCostAtRisk is the aggregate monthly cost (USD) of the
	// affected set.
	MonthlyCostAtRisk float64
	// DependentCount counts direct downstream dependents of the target.
	DependentCount int
	// Environment is the detected environment classification; empty and
	// "unknown" both read as no signal.
	Environment string
	// AcceleratedWorkload marks GPU/AI workloads.
	AcceleratedWorkload bool
	// Hour is the local hour of day [0,23] at evaluation time.
	Hour int
	// Action is the requested mutation.
	Action domain.ChangeAction
}

// Score maps a change's observable attributes to a bounded assessment.
// The score is an integer in [0,100]; the level is the unique bucket for the
// score. Each non-zero contributing factor appends one explanation, in
// fixed evaluation order.
func Score(in Input) domain.RiskAssessment {
	var total float64
	factors := []string{}

	if in.BlastRadiusSize > 0 {
		ratio := math.Min(float64(in.BlastRadiusSize)/blastRadiusCap, 1)
		pts := weightBlastRadius * ratio
		total += pts
		factors = append(factors, fmt.Sprintf("blast radius: %d affected resources (+%.1f)", in.BlastRadiusSize, pts))
	}

	if in.MonthlyCostAtRisk > 0 {
		ratio := math.Min(math.Log10(in.MonthlyCostAtRisk+1)/math.Log10(costCapMonthly), 1)
		pts := weightCost * ratio
		total += pts
		factors = append(factors, fmt.Sprintf("cost at risk: $%.2f/month (+%.1f)", in.MonthlyCostAtRisk, pts))
	}

	if in.DependentCount > 0 {
		ratio := math.Min(float64(in.DependentCount)/dependentsCap, 1)
		pts := weightDependents * ratio
		total += pts
		factors = append(factors, fmt.Sprintf("direct dependents: %d (+%.1f)", in.DependentCount, pts))
	}

	if pts := environmentPoints(in.Environment); pts > 0 {
		total += pts
		factors = append(factors, fmt.Sprintf("environment: %s (+%.1f)", environmentLabel(in.Environment), pts))
	}

	if in.AcceleratedWorkload {
		total += weightAccelerated
		factors = append(factors, fmt.Sprintf("GPU/AI workload (+%.1f)", weightAccelerated))
	}

	if in.Hour < offHoursMorning || in.Hour > offHoursEvening {
		total += weightOffHours
		factors = append(factors, fmt.Sprintf("off-hours change at %02d:00 local (+%.1f)", in.Hour, weightOffHours))
	}

	if in.Action == domain.ActionDelete {
		total += weightDestructive
		factors = append(factors, fmt.Sprintf("destructive action: delete (+%.1f)", weightDestructive))
	}

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return domain.RiskAssessment{
		Score:   score,
		Level:   LevelFor(score),
		Factors: factors,
	}
}

// environmentPoints implements the deliberate asymmetry: a name containing
// "prod" scores full weight, "stag" half, no signal 30%, and any other
// explicit name (dev, test, ...) zero. "No signal" is treated as riskier
// than "explicitly low-risk".
func environmentPoints(env string) float64 {
	lower := strings.ToLower(env)
	switch {
	case strings.Contains(lower, "prod"):
		return weightEnvironment
	case strings.Contains(lower, "stag"):
		return weightEnvironment / 2
	case env == "" || lower == "unknown":
		return weightEnvironment * 0.3
	}
	return 0
}

func environmentLabel(env string) string {
	if env == "" {
		return "unknown"
	}
	return env
}

// LevelFor buckets a score: <=20 low, <=50 medium, <=75 high, else critical.
func LevelFor(score int) domain.RiskLevel {
	switch {
	case score <= levelLowMax:
		return domain.RiskLow
	case score <= levelMediumMax:
		return domain.RiskMedium
	case score <= levelHighMax:
		return domain.RiskHigh
	}
	return domain.RiskCritical
}
