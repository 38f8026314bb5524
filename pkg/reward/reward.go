// Package reward computes the scalar reward described by §4.5 from an
// observed decision outcome. The function is pure, finite, and bounded.
package reward

import (
	"math"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// Constants calibrates the reward formula. The spec leaves the exact
// weighting repository-specific (§9 Open Questions); see DESIGN.md for the
// calibration this implementation chose and why it satisfies testable
// property (1) ("a single failure dominates several successes").
type Constants struct {
	SuccessBonus   float64 `yaml:"success_bonus" json:"success_bonus"`     // B
	FailurePenalty float64 `yaml:"failure_penalty" json:"failure_penalty"` // P
	LatencyRef     float64 `yaml:"latency_ref" json:"latency_ref"`         // L_ref, in the same unit as ActualLatencyMs
	ReputationMax  float64 `yaml:"reputation_max" json:"reputation_max"`   // R_max
}

// DefaultConstants is the calibration documented in DESIGN.md.
func DefaultConstants() Constants {
	return Constants{
		SuccessBonus:   1.0,
		FailurePenalty: 5.0,
		LatencyRef:     1000, // 1 second
		ReputationMax:  100,
	}
}

// Compute returns the reward for an observed outcome. The result is always
// finite: Compute never returns NaN or +/-Inf, regardless of Outcome's
// contents, because every term is individually clipped or zeroed.
func (c Constants) Compute(o contracts.Outcome) float64 {
	successTerm := -c.FailurePenalty
	if o.Success {
		successTerm = c.SuccessBonus
	}

	costTerm := -safeNonNegative(o.ActualCost)

	latencyTerm := 0.0
	if c.LatencyRef > 0 {
		latencyTerm = -safeNonNegative(o.ActualLatencyMs) / c.LatencyRef
		if latencyTerm < -1 {
			latencyTerm = -1
		}
	}

	reputationTerm := 0.0
	if o.ActualRepuation != nil && c.ReputationMax > 0 {
		reputationTerm = safeNonNegative(*o.ActualRepuation) / c.ReputationMax
	}

	total := successTerm + costTerm + latencyTerm + reputationTerm
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	return total
}

// safeNonNegative treats a non-finite or negative input as zero, so a
// corrupt outcome field can never propagate a NaN/Inf into the total.
func safeNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
