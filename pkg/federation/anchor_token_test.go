package federation

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

func TestSignAndVerifyAnchor_RoundTrips(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	anchor := contracts.Anchor{
		RecordID:    "rec-1",
		Class:       contracts.AnchorClassTSA,
		Reference:   "tsa-serial-123",
		ContentHash: "deadbeef",
	}

	token, err := SignAnchor(anchor, "peer-east", priv, time.Hour)
	require.NoError(t, err)

	got, err := VerifyAnchor(token, pub)
	require.NoError(t, err)
	assert.Equal(t, anchor.RecordID, got.RecordID)
	assert.Equal(t, anchor.Class, got.Class)
	assert.Equal(t, anchor.Reference, got.Reference)
	assert.Equal(t, anchor.ContentHash, got.ContentHash)
}

func TestVerifyAnchor_RejectsWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	token, err := SignAnchor(contracts.Anchor{RecordID: "rec-1"}, "peer-east", priv, time.Hour)
	require.NoError(t, err)

	_, err = VerifyAnchor(token, otherPub)
	assert.Error(t, err)
}

func TestVerifyAnchor_RejectsExpiredToken(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub := priv.Public().(ed25519.PublicKey)

	token, err := SignAnchor(contracts.Anchor{RecordID: "rec-1"}, "peer-east", priv, -time.Hour)
	require.NoError(t, err)

	_, err = VerifyAnchor(token, pub)
	assert.Error(t, err)
}
