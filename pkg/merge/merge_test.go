package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func rec(id, payloadHash string, ts time.Time, signer string) contracts.FederationRecord {
	return contracts.FederationRecord{ID: id, PayloadHash: payloadHash, Timestamp: ts, SignerID: signer}
}

func TestMerge_DedupByID_IdenticalContentKeptOnce(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	left := []contracts.FederationRecord{rec("a", "hash1", ts, "s1")}
	right := []contracts.FederationRecord{rec("a", "hash1", ts, "s1")}

	result, err := Merge(left, right, ts)
	require.NoError(t, err)
	assert.Len(t, result.Merged, 1)
}

func TestMerge_DedupByID_CollisionKeepsSmallerHash(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	left := []contracts.FederationRecord{rec("a", "zzz", ts, "s1")}
	right := []contracts.FederationRecord{rec("a", "aaa", ts, "s2")}

	result, err := Merge(left, right, ts)
	require.NoError(t, err)
	require.Len(t, result.Merged, 1)
	assert.Equal(t, "aaa", result.Merged[0].PayloadHash)
}

func TestMerge_SortOrder_ByHashThenTimestampThenSigner(t *testing.T) {
	ts1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	left := []contracts.FederationRecord{
		rec("c", "bbb", ts2, "s2"),
		rec("a", "aaa", ts1, "s1"),
	}
	right := []contracts.FederationRecord{
		rec("b", "aaa", ts1, "s0"),
	}

	result, err := Merge(left, right, ts1)
	require.NoError(t, err)
	require.Len(t, result.Merged, 3)

	// hash "aaa" group sorted by signer s0 before s1; then hash "bbb".
	assert.Equal(t, "b", result.Merged[0].ID)
	assert.Equal(t, "a", result.Merged[1].ID)
	assert.Equal(t, "c", result.Merged[2].ID)
}

func TestMerge_ReceiptRecordsRootsAndCounts(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	left := []contracts.FederationRecord{rec("a", "aaa", ts, "s1")}
	right := []contracts.FederationRecord{rec("b", "bbb", ts, "s2")}

	result, err := Merge(left, right, ts)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Receipt.LeftRoot)
	assert.NotEmpty(t, result.Receipt.RightRoot)
	assert.NotEmpty(t, result.Receipt.MergedRoot)
	assert.Equal(t, 2, result.Receipt.EventsReplayed)
	assert.Equal(t, PolicyID, result.Receipt.PolicyID)
	assert.Equal(t, ts, result.Receipt.Timestamp)
}

func TestMerge_IsDeterministicAcrossRuns(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	left := []contracts.FederationRecord{rec("a", "aaa", ts, "s1"), rec("c", "ccc", ts, "s3")}
	right := []contracts.FederationRecord{rec("b", "bbb", ts, "s2")}

	r1, err := Merge(left, right, ts)
	require.NoError(t, err)
	r2, err := Merge(left, right, ts)
	require.NoError(t, err)

	assert.Equal(t, r1.Receipt.MergedRoot, r2.Receipt.MergedRoot)
}

func TestMerge_EmptyBothSidesProjectsToEmptyRoot(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := Merge(nil, nil, ts)
	require.NoError(t, err)
	assert.Empty(t, result.Merged)
	assert.Equal(t, result.Receipt.LeftRoot, result.Receipt.RightRoot)
	assert.Equal(t, result.Receipt.LeftRoot, result.Receipt.MergedRoot)
}
