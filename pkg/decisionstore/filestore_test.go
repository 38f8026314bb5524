package decisionstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestFileStore_CreateAndRecoverAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decisions.log")

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	trace := contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now(), Tenant: "t1"}
	require.NoError(t, fs.Create(ctx, trace))
	_, _, err = fs.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: true}, 2.5, false)
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Finalized)
	require.NotNil(t, got.Reward)
	assert.Equal(t, 2.5, *got.Reward)
}

func TestFileStore_FinalizeOutcome_IdempotentAfterReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decisions.log")

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Create(ctx, contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now()}))
	_, applied, err := fs.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: true}, 1.0, false)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, fs.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	reward, applied, err := reopened.FinalizeOutcome(ctx, "d1", contracts.Outcome{Success: false}, -9.0, false)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1.0, reward)
}

func TestFileStore_DiscardsTruncatedTrailingRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decisions.log")

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Create(ctx, contracts.DecisionTrace{DecisionID: "d1", Timestamp: time.Now()}))
	require.NoError(t, fs.Create(ctx, contracts.DecisionTrace{DecisionID: "d2", Timestamp: time.Now()}))
	require.NoError(t, fs.Close())

	// Simulate a crash mid-write: truncate the file so the last record's
	// trailing checksum bytes are missing.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-2))

	recovered, err := NewFileStore(path)
	require.NoError(t, err)
	defer recovered.Close()

	_, err = recovered.Get(ctx, "d1")
	require.NoError(t, err)
}

func TestFileStore_RejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.log")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 1, 0xDE, 0xAD, 0xBE, 0xEF}, 0o600))

	_, err := NewFileStore(path)
	require.Error(t, err)
}
