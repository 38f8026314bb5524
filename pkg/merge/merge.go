// Package merge implements the deterministic two-way union of federation
// event logs described by §4.10, grounded on the teacher's
// canonicalize.JCS (reused directly for hashing) and the merkle package
// from C8 for the receipt's root computation.
package merge

import (
	"sort"
	"time"

	"github.com/lattice-compute/routectl/pkg/canonicalize"
	"github.com/lattice-compute/routectl/pkg/contracts"
	"github.com/lattice-compute/routectl/pkg/merkle"
)

// PolicyID is the versioned merge-policy identifier stamped into every
// MergeReceipt, so a future change to the merge rules can refuse to merge
// a receipt produced under a different policy.
const PolicyID = "gpuroute-merge-policy/v1"

// Result is the outcome of Merge: the deterministic union plus the
// receipt documenting how it was produced.
type Result struct {
	Merged  []contracts.FederationRecord
	Receipt contracts.MergeReceipt
}

// Merge computes the deterministic union of left and right following
// §4.10: dedup by id (lexicographically smaller PayloadHash wins a
// collision), sort by (payload_hash, timestamp, signer_id), then compute
// Merkle roots over left, right, and the merged result. now is the
// timestamp stamped into the receipt (callers supply it explicitly since
// this package must stay free of wall-clock reads).
func Merge(left, right []contracts.FederationRecord, now time.Time) (Result, error) {
	leftRoot, err := projectRoot(left)
	if err != nil {
		return Result{}, err
	}
	rightRoot, err := projectRoot(right)
	if err != nil {
		return Result{}, err
	}

	byID := make(map[string]contracts.FederationRecord, len(left)+len(right))
	for _, r := range left {
		byID[r.ID] = r
	}
	for _, r := range right {
		existing, ok := byID[r.ID]
		if !ok {
			byID[r.ID] = r
			continue
		}
		if existing.PayloadHash == r.PayloadHash {
			continue // identical content under the same id, no conflict
		}
		// Differing content under the same id: keep the lexicographically
		// smaller content hash.
		if r.PayloadHash < existing.PayloadHash {
			byID[r.ID] = r
		}
	}

	merged := make([]contracts.FederationRecord, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	sortMerged(merged)

	mergedRoot, err := projectRoot(merged)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Merged: merged,
		Receipt: contracts.MergeReceipt{
			LeftRoot:       leftRoot,
			RightRoot:      rightRoot,
			MergedRoot:     mergedRoot,
			EventsReplayed: len(merged),
			PolicyID:       PolicyID,
			Timestamp:      now,
		},
	}, nil
}

// sortMerged orders records by (content_hash asc, timestamp asc, signer_id
// asc), the tie-break chain required by §4.10 step 2.
func sortMerged(records []contracts.FederationRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.PayloadHash != b.PayloadHash {
			return a.PayloadHash < b.PayloadHash
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.SignerID < b.SignerID
	})
}

// projectRoot computes the Merkle root over records in their given order,
// canonicalizing each record's payload for the leaf hash via JCS.
func projectRoot(records []contracts.FederationRecord) (string, error) {
	leaves := make([]merkle.Leaf, len(records))
	for i, r := range records {
		leaves[i] = merkle.Leaf{ID: r.ID, Value: r}
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

// ContentHash computes the canonical-JSON content hash used as a
// FederationRecord's PayloadHash, exposed so callers constructing records
// (federation sync, conflict resolution) compute it consistently.
func ContentHash(payload map[string]any) (string, error) {
	return canonicalize.CanonicalHash(payload)
}
