package federation

import (
	"context"
	"fmt"

	"github.com/lattice-compute/routectl/pkg/canonicalize"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

// ContentHashValidator rejects a FederationRecord whose declared
// PayloadHash does not match the canonical-JSON hash of its own Payload,
// the §4.11 "pre-check" this package runs before insert: a record that
// fails this check is a forged or corrupted peer entry, not a genuine
// conflict, and must never reach the conflict resolver.
func ContentHashValidator(ctx context.Context, r Record) error {
	fr, ok := r.(contracts.FederationRecord)
	if !ok {
		return fmt.Errorf("federation: validator received unexpected record type %T", r)
	}
	want, err := canonicalize.CanonicalHash(fr.Payload)
	if err != nil {
		return err
	}
	if want != fr.PayloadHash {
		return fmt.Errorf("federation: payload hash mismatch for record %s", fr.ID)
	}
	return nil
}
