package reward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestCompute_SuccessDominatesFailurePenalty(t *testing.T) {
	c := DefaultConstants()
	successReward := c.Compute(contracts.Outcome{Success: true})
	failureReward := c.Compute(contracts.Outcome{Success: false})

	// One failure must dominate several successes: |failure| > N*success for
	// small N, so a single bad outcome cannot be offset by a couple of good
	// ones.
	assert.Greater(t, math.Abs(failureReward), 3*successReward)
}

func TestCompute_AlwaysFinite(t *testing.T) {
	c := DefaultConstants()
	bad := contracts.Outcome{
		Success:         true,
		ActualCost:      math.Inf(1),
		ActualLatencyMs: math.NaN(),
	}
	r := c.Compute(bad)
	assert.False(t, math.IsNaN(r))
	assert.False(t, math.IsInf(r, 0))
}

func TestCompute_LatencyTermClippedAtNegativeOne(t *testing.T) {
	c := DefaultConstants()
	r := c.Compute(contracts.Outcome{Success: true, ActualLatencyMs: 100000})
	// success bonus (1) + clipped latency (-1) == 0
	assert.InDelta(t, c.SuccessBonus-1, r, 1e-9)
}

func TestCompute_ReputationTermOnlyWhenReported(t *testing.T) {
	c := DefaultConstants()
	without := c.Compute(contracts.Outcome{Success: true})
	rep := 50.0
	with := c.Compute(contracts.Outcome{Success: true, ActualRepuation: &rep})
	assert.InDelta(t, without+0.5, with, 1e-9)
}
