package strategist

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/lattice-compute/routectl/pkg/canonicalize"
)

// Snapshot is the canonical-JSON document §6 "Persistence layout" describes:
// hyperparameters first, then a sparse map of state -> (action -> value).
// Field order in the struct matches the documented layout; canonicalize.JCS
// sorts object keys independently of struct field order, so the ordering
// requirement is really about content, not byte layout — the struct order
// simply keeps the Go side readable in the same order as the spec.
type Snapshot struct {
	Hyperparameters Hyperparameters                `json:"hyperparameters"`
	Epsilon         float64                        `json:"epsilon"`
	Values          map[string]map[string]float64  `json:"values"`
}

// Snapshot captures the strategist's full state for durable persistence.
// Two snapshots with identical content produce byte-identical canonical
// JSON (round-trip property, §8).
func (s *Strategist) Snapshot() Snapshot {
	return Snapshot{
		Hyperparameters: s.hp,
		Epsilon:         s.Epsilon(),
		Values:          s.table.snapshot(),
	}
}

// LoadSnapshot reconstructs a Strategist whose subsequent behavior is
// identical to the one that produced snap: same hyperparameters, same
// epsilon, same value table.
func LoadSnapshot(snap Snapshot) *Strategist {
	s := New(snap.Hyperparameters, nil)
	atomic.StoreUint64(&s.epsilonBits, math.Float64bits(snap.Epsilon))
	s.table.restore(snap.Values)
	return s
}

// ContentHash returns the snapshot's canonical-JSON SHA-256 digest, making
// the persisted artifact content-addressed per §6.
func (snap Snapshot) ContentHash() (string, error) {
	h, err := canonicalize.CanonicalHash(snap)
	if err != nil {
		return "", fmt.Errorf("strategist: snapshot hash: %w", err)
	}
	return h, nil
}

// CanonicalBytes returns the RFC 8785 canonical JSON encoding of the
// snapshot, suitable for writing to the persistence layer verbatim.
func (snap Snapshot) CanonicalBytes() ([]byte, error) {
	return canonicalize.JCS(snap)
}
