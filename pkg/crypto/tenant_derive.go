package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// federationKDFInfo domain-separates tenant key derivation from any other
// HKDF use in this package; changing it silently invalidates every
// previously-derived tenant key.
const federationKDFInfo = "gpuroute-federation-anchor-kdf"

// DeriveTenantAnchorSigner derives a tenant-specific Ed25519 signer from a
// master signer's seed via HKDF-SHA256, so a federation member can issue
// per-tenant anchor signatures without holding a per-tenant keystore. Each
// tenantID maps deterministically to the same keypair on every call.
func DeriveTenantAnchorSigner(master *Ed25519Signer, tenantID string) (*Ed25519Signer, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("crypto: tenantID must not be empty")
	}

	seed := master.privKey.Seed()
	reader := hkdf.New(sha256.New, seed, []byte(federationKDFInfo), []byte(tenantID))
	tenantSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, tenantSeed); err != nil {
		return nil, fmt.Errorf("crypto: tenant key derivation failed: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(tenantSeed)
	return NewEd25519SignerFromKey(priv, master.KeyID+"/"+tenantID), nil
}
