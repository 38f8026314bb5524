package decisionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestMemStore_CreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	trace := contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now(), Tenant: "t1"}
	require.NoError(t, s.Create(ctx, trace))

	err := s.Create(ctx, trace)
	require.Error(t, err)
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apierr.KindAlreadyFinalized, ae.Kind)
}

func TestMemStore_GetUnknown(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.Get(ctx, "missing")
	require.Error(t, err)
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apierr.KindUnknownDecision, ae.Kind)
}

func TestMemStore_FinalizeOutcome_IdempotentSecondCallReturnsFirstReward(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	trace := contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now(), Tenant: "t1"}
	require.NoError(t, s.Create(ctx, trace))

	reward1, applied1, err := s.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: true}, 1.0, false)
	require.NoError(t, err)
	assert.True(t, applied1)
	assert.Equal(t, 1.0, reward1)

	// Second call with a different reward value must be ignored: the first
	// finalized reward is returned and applied is false.
	reward2, applied2, err := s.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: false}, -5.0, false)
	require.NoError(t, err)
	assert.False(t, applied2)
	assert.Equal(t, 1.0, reward2)

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got.Reward)
	assert.Equal(t, 1.0, *got.Reward)
}

func TestMemStore_FinalizeOutcome_PersistsPoisoned(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	trace := contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now(), Tenant: "t1"}
	require.NoError(t, s.Create(ctx, trace))

	_, applied, err := s.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: true}, 0, true)
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Poisoned)
}

func TestMemStore_FinalizeOutcome_UnknownID(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, applied, err := s.FinalizeOutcome(ctx, "missing", contracts.Outcome{Success: true}, 1.0, false)
	require.Error(t, err)
	assert.False(t, applied)
}

func TestMemStore_MarkAbandoned(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	trace := contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now()}
	require.NoError(t, s.Create(ctx, trace))
	require.NoError(t, s.MarkAbandoned(ctx, "d1"))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Abandoned)
}

func TestMemStore_ScanByTimeRange_OrderedAndBounded(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Create(ctx, contracts.DecisionTrace{
			DecisionID: id,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	out, err := s.ScanByTimeRange(ctx, base, base.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{out[0].DecisionID, out[1].DecisionID, out[2].DecisionID})

	out, err = s.ScanByTimeRange(ctx, base.Add(90*time.Second), base.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].DecisionID)
}

func TestMemStore_ScanByTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "d1", Tenant: "alpha", Timestamp: time.Now()}))
	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "d2", Tenant: "beta", Timestamp: time.Now()}))
	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "d3", Tenant: "alpha", Timestamp: time.Now()}))

	out, err := s.ScanByTenant(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestMemStore_Retention_OnlyRemovesFinalizedBeforeCutoff(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "old-finalized", Timestamp: old}))
	_, _, err := s.FinalizeOutcome(ctx, "old-finalized", contracts.Outcome{Success: true}, 1.0, false)
	require.NoError(t, err)

	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "old-unfinalized", Timestamp: old}))

	require.NoError(t, s.Create(ctx, contracts.DecisionTrace{DecisionID: "recent-finalized", Timestamp: recent}))
	_, _, err = s.FinalizeOutcome(ctx, "recent-finalized", contracts.Outcome{Success: true}, 1.0, false)
	require.NoError(t, err)

	n, err := s.Retention(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "old-finalized")
	assert.Error(t, err)
	_, err = s.Get(ctx, "old-unfinalized")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "recent-finalized")
	assert.NoError(t, err)
}
