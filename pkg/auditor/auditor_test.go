package auditor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestValidate_StrictRejectsPriceViolation(t *testing.T) {
	// Scenario 3 from spec §8.
	a := New(ModeStrict).WithClock(fixedClock(time.Unix(0, 0)))
	ctx := contracts.WorkloadContext{
		AcceleratorClass: "h100",
		Constraints:      contracts.Constraints{MaxPrice: 2.0},
	}
	provider := contracts.Provider{
		ID:                 "provider-1",
		PricePerHour:       map[string]float64{"h100": 3.0},
		AcceleratorClasses: map[string]bool{"h100": true},
		Overlay:            contracts.IdentityOverlay(),
	}

	results := a.Validate("dec-1", "state-a", ctx, []contracts.Provider{provider})
	require.Len(t, results, 1)
	assert.False(t, results[0].Allowed)
	assert.Equal(t, contracts.StatusRejected, results[0].Entry.Status)
	assert.Equal(t, []contracts.Violation{contracts.ViolationPrice}, results[0].Entry.Violations)
}

func TestValidate_PermissiveFlagsInsteadOfRejects(t *testing.T) {
	a := New(ModePermissive)
	ctx := contracts.WorkloadContext{
		AcceleratorClass: "h100",
		Constraints:      contracts.Constraints{MaxPrice: 2.0},
	}
	provider := contracts.Provider{
		ID:                 "provider-1",
		PricePerHour:       map[string]float64{"h100": 3.0},
		AcceleratorClasses: map[string]bool{"h100": true},
		Overlay:            contracts.IdentityOverlay(),
	}

	results := a.Validate("dec-1", "state-a", ctx, []contracts.Provider{provider})
	require.Len(t, results, 1)
	assert.True(t, results[0].Allowed)
	assert.Equal(t, contracts.StatusFlagged, results[0].Entry.Status)
}

func TestValidate_NoViolationsApproved(t *testing.T) {
	a := New(ModeStrict)
	ctx := contracts.WorkloadContext{AcceleratorClass: "h100", Region: "us-east"}
	provider := contracts.Provider{
		ID:                 "provider-1",
		Regions:            map[string]bool{"us-east": true},
		AcceleratorClasses: map[string]bool{"h100": true},
		Reputation:         90,
		Overlay:            contracts.IdentityOverlay(),
	}

	results := a.Validate("dec-1", "state-a", ctx, []contracts.Provider{provider})
	require.Len(t, results, 1)
	assert.True(t, results[0].Allowed)
	assert.Equal(t, contracts.StatusApproved, results[0].Entry.Status)
	assert.Empty(t, results[0].Entry.Violations)
}

func TestValidate_ViolationOrderIsDeterministic(t *testing.T) {
	a := New(ModePermissive)
	ctx := contracts.WorkloadContext{
		AcceleratorClass: "h100",
		Region:           "us-east",
		Constraints: contracts.Constraints{
			MaxPrice:         1.0,
			MaxLatencyMillis: 10,
			MinReputation:    99,
		},
	}
	provider := contracts.Provider{
		ID:                 "provider-1",
		PricePerHour:       map[string]float64{"h100": 5.0},
		AcceleratorClasses: map[string]bool{"h100": true},
		Regions:            map[string]bool{"us-east": true},
		BaseLatencyMillis:  500,
		Reputation:         10,
		Overlay:            contracts.IdentityOverlay(),
	}

	results := a.Validate("dec-1", "state-a", ctx, []contracts.Provider{provider})
	require.Len(t, results, 1)
	assert.Equal(t, []contracts.Violation{
		contracts.ViolationPrice,
		contracts.ViolationLatency,
		contracts.ViolationReputation,
	}, results[0].Entry.Violations)
}
