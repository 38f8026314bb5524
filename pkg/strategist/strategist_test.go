package strategist

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestRecommend_NoCandidates(t *testing.T) {
	s := New(DefaultHyperparameters(), rand.New(rand.NewSource(1)))
	_, err := s.Recommend("state-a", nil, nil)
	assert.ErrorIs(t, err, ErrNoViableProviders)
}

func TestRecommend_ExploitPath(t *testing.T) {
	// Scenario 1 from spec §8: two providers, one with value 1.0, the other
	// 0.0 for the state; eps=0 -> chosen is the one with the higher value.
	hp := DefaultHyperparameters()
	hp.BaseEpsilon = 0
	hp.MinEpsilon = 0
	s := New(hp, rand.New(rand.NewSource(1)))

	s.table.set("state-a", "provider-1", func(float64) float64 { return 1.0 })

	rec, err := s.Recommend("state-a", []string{"provider-1", "provider-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "provider-1", rec.ProviderID)

	newQ, applied := s.Update("state-a", "provider-1", 1.0, nil, nil)
	require.True(t, applied)
	assert.InDelta(t, 1.0, newQ, 1e-9) // 1 + alpha*(1-1) = 1 exactly
}

func TestRecommend_TieBreaksLowestProviderID(t *testing.T) {
	hp := DefaultHyperparameters()
	hp.BaseEpsilon = 0
	s := New(hp, rand.New(rand.NewSource(1)))

	rec, err := s.Recommend("state-a", []string{"provider-9", "provider-2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "provider-2", rec.ProviderID) // both zero-valued, lowest id wins
}

func TestRecommend_ExplorePathIsSeedDeterministic(t *testing.T) {
	hp := DefaultHyperparameters()
	hp.BaseEpsilon = 1 // always explore

	s1 := New(hp, rand.New(rand.NewSource(42)))
	s2 := New(hp, rand.New(rand.NewSource(42)))

	candidates := []string{"provider-1", "provider-2", "provider-3"}
	r1, err := s1.Recommend("state-a", candidates, nil)
	require.NoError(t, err)
	r2, err := s2.Recommend("state-a", candidates, nil)
	require.NoError(t, err)

	assert.Equal(t, r1.ProviderID, r2.ProviderID)
	assert.Equal(t, contracts.ModeExplore, r1.Metadata.Mode)
}

func TestUpdate_RejectsNonFiniteReward(t *testing.T) {
	s := New(DefaultHyperparameters(), rand.New(rand.NewSource(1)))
	before := s.table.get("state-a", "provider-1")

	_, applied := s.Update("state-a", "provider-1", math.NaN(), nil, nil)
	assert.False(t, applied)

	_, applied = s.Update("state-a", "provider-1", math.Inf(1), nil, nil)
	assert.False(t, applied)

	assert.Equal(t, before, s.table.get("state-a", "provider-1")) // unchanged
}

func TestDecay_MonotoneNonIncreasingBoundedBelow(t *testing.T) {
	hp := DefaultHyperparameters()
	hp.BaseEpsilon = 0.5
	hp.MinEpsilon = 0.1
	hp.DecayFactor = 0.9
	s := New(hp, rand.New(rand.NewSource(1)))

	prev := s.Epsilon()
	for i := 0; i < 50; i++ {
		next := s.Decay()
		assert.LessOrEqual(t, next, prev)
		assert.GreaterOrEqual(t, next, hp.MinEpsilon)
		prev = next
	}
	assert.InDelta(t, hp.MinEpsilon, prev, 1e-9)
}

func TestValueTable_UnseenPairIsZero(t *testing.T) {
	s := New(DefaultHyperparameters(), nil)
	assert.Equal(t, 0.0, s.table.get("never-seen", "provider-x"))
}

func TestSnapshot_RoundTripIsByteIdentical(t *testing.T) {
	s := New(DefaultHyperparameters(), rand.New(rand.NewSource(7)))
	s.table.set("state-a", "provider-1", func(float64) float64 { return 0.42 })
	s.Decay()

	snap := s.Snapshot()
	b1, err := snap.CanonicalBytes()
	require.NoError(t, err)

	restored := LoadSnapshot(snap)
	b2, err := restored.Snapshot().CanonicalBytes()
	require.NoError(t, err)

	assert.Equal(t, b1, b2)
	assert.Equal(t, snap.Epsilon, restored.Epsilon())
}
