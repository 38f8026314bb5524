package federation

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// AnchorClaims carries a federation anchor inside a signed JWT so a peer can
// present proof of an external timestamp/reference without exposing its
// raw signing key to the receiving member.
type AnchorClaims struct {
	jwt.RegisteredClaims
	RecordID    string               `json:"record_id"`
	Class       contracts.AnchorClass `json:"class"`
	Reference   string               `json:"reference"`
	ContentHash string               `json:"content_hash"`
}

// SignAnchor issues an EdDSA-signed token for an anchor, valid for the
// given TTL. The signer is normally a tenant-derived key from
// crypto.DeriveTenantAnchorSigner, not a federation member's master key.
func SignAnchor(anchor contracts.Anchor, signerID string, privKey ed25519.PrivateKey, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AnchorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   anchor.RecordID,
			Issuer:    signerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		RecordID:    anchor.RecordID,
		Class:       anchor.Class,
		Reference:   anchor.Reference,
		ContentHash: anchor.ContentHash,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(privKey)
	if err != nil {
		return "", fmt.Errorf("federation: anchor signing failed: %w", err)
	}
	return signed, nil
}

// VerifyAnchor validates an anchor token against the issuing peer's public
// key and returns the anchor it attests to. An expired or mis-signed token
// is always an error, never a degraded/partial anchor.
func VerifyAnchor(tokenString string, pubKey ed25519.PublicKey) (contracts.Anchor, error) {
	var claims AnchorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("federation: unexpected signing method %v", t.Header["alg"])
		}
		return pubKey, nil
	})
	if err != nil {
		return contracts.Anchor{}, fmt.Errorf("federation: anchor token invalid: %w", err)
	}

	return contracts.Anchor{
		RecordID:    claims.RecordID,
		Class:       claims.Class,
		Timestamp:   claims.IssuedAt.Format(time.RFC3339),
		Reference:   claims.Reference,
		ContentHash: claims.ContentHash,
	}, nil
}
