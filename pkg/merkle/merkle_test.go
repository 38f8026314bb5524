package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EmptyLogProjectsToHashOfEmptyString(t *testing.T) {
	tree, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, emptyRoot, tree.Root)
}

func TestBuild_DeterministicAcrossRuns(t *testing.T) {
	leaves := []Leaf{
		{ID: "a", Value: map[string]any{"x": 1}},
		{ID: "b", Value: map[string]any{"x": 2}},
		{ID: "c", Value: map[string]any{"x": 3}},
	}

	t1, err := Build(leaves)
	require.NoError(t, err)
	t2, err := Build(leaves)
	require.NoError(t, err)

	assert.Equal(t, t1.Root, t2.Root)
	assert.NotEmpty(t, t1.Root)
}

func TestBuild_OddLeafDuplicatesSelf(t *testing.T) {
	leaves := []Leaf{
		{ID: "a", Value: "valueA"},
		{ID: "b", Value: "valueB"},
		{ID: "c", Value: "valueC"},
	}
	tree, err := Build(leaves)
	require.NoError(t, err)
	require.Len(t, tree.Leaves, 3)

	h1, h2, h3 := tree.Leaves[0].Hash, tree.Leaves[1].Hash, tree.Leaves[2].Hash
	n1 := nodeHash(h1, h2)
	n2 := nodeHash(h3, h3) // duplicated trailing leaf
	root := nodeHash(n1, n2)

	assert.Equal(t, root, tree.Root)
}

func TestProve_RoundTripsThroughVerify(t *testing.T) {
	leaves := []Leaf{
		{ID: "a", Value: "valueA"},
		{ID: "b", Value: "valueB"},
		{ID: "c", Value: "valueC"},
	}
	tree, err := Build(leaves)
	require.NoError(t, err)

	for i := range leaves {
		proof, err := Prove(tree, i)
		require.NoError(t, err)
		assert.True(t, VerifyInclusionProof(proof, tree.Root), "leaf %d should verify", i)
	}
}

func TestVerifyInclusionProof_RejectsTamperedLeafHash(t *testing.T) {
	leaves := []Leaf{
		{ID: "a", Value: "valueA"},
		{ID: "b", Value: "valueB"},
		{ID: "c", Value: "valueC"},
	}
	tree, err := Build(leaves)
	require.NoError(t, err)

	proof, err := Prove(tree, 2)
	require.NoError(t, err)

	tampered := proof
	tampered.LeafHash = tree.Leaves[0].Hash
	assert.False(t, VerifyInclusionProof(tampered, tree.Root))
}

func TestVerifyInclusionProof_RejectsWrongExpectedRoot(t *testing.T) {
	leaves := []Leaf{{ID: "a", Value: "valueA"}, {ID: "b", Value: "valueB"}}
	tree, err := Build(leaves)
	require.NoError(t, err)

	proof, err := Prove(tree, 0)
	require.NoError(t, err)

	assert.False(t, VerifyInclusionProof(proof, "not-the-real-root"))
}

func TestBuild_SingleLeafRootIsItsLeafHash(t *testing.T) {
	tree, err := Build([]Leaf{{ID: "only", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, tree.Leaves[0].Hash, tree.Root)
}
