package federation

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ProtocolVersion is this member's federation wire protocol version.
// LoadPeerList rejects a peer entry whose advertised protocol_version falls
// outside protocolConstraint; Syncer.SyncPeer does no version check itself.
const ProtocolVersion = "1.2.0"

// protocolConstraint is the range of peer protocol versions this member can
// merge records with. A peer on a major version bump that could carry
// incompatible record or anchor schemas is rejected before any sync starts,
// rather than failing partway through a merge.
const protocolConstraint = ">= 1.0.0, < 2.0.0"

// CheckProtocolCompatible reports whether a peer-advertised protocol
// version satisfies protocolConstraint.
func CheckProtocolCompatible(peerVersion string) error {
	v, err := semver.NewVersion(peerVersion)
	if err != nil {
		return fmt.Errorf("invalid protocol version %q: %w", peerVersion, err)
	}

	c, err := semver.NewConstraint(protocolConstraint)
	if err != nil {
		return fmt.Errorf("invalid protocol constraint: %w", err)
	}

	if !c.Check(v) {
		return fmt.Errorf("protocol version %s incompatible with constraint %s", v, protocolConstraint)
	}
	return nil
}
