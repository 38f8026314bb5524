// Package merkle projects an append-ordered sequence of federation records
// into a deterministic Merkle root, per §4.8. Leaf and internal-node
// hashes are domain-separated (distinct prefixes) so a node hash can never
// be replayed as a leaf hash or vice versa.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/lattice-compute/routectl/pkg/canonicalize"
)

const (
	leafDomainTag = "gpuroute:federation:leaf:v1"
	nodeDomainTag = "gpuroute:federation:node:v1"
)

// emptyRoot is H("") as specified for the empty log.
var emptyRoot = sha256Hex([]byte(""))

// Leaf is one entry in the projected log: an id used only for
// addressing/debugging, and the value whose canonical JSON form is hashed.
type Leaf struct {
	ID    string
	Value any
}

// LeafHash is a computed leaf: its source id and its domain-separated hash.
type LeafHash struct {
	ID   string
	Hash string
}

// Tree holds the leaves and every intermediate level, so a caller can
// build an InclusionProof for any leaf without recomputing the tree.
type Tree struct {
	Leaves []LeafHash
	Levels [][]string // Levels[0] is leaf hashes; the last entry is [Root]
	Root   string
}

// Build computes the Merkle tree over leaves in the order given. Callers
// are responsible for sorting leaves into the log's canonical append
// order before calling Build; Build does not reorder.
func Build(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return &Tree{Root: emptyRoot}, nil
	}

	hashes := make([]LeafHash, len(leaves))
	level := make([]string, len(leaves))
	for i, l := range leaves {
		canonical, err := canonicalize.JCS(l.Value)
		if err != nil {
			return nil, err
		}
		h := leafHash(canonical)
		hashes[i] = LeafHash{ID: l.ID, Hash: h}
		level[i] = h
	}

	tree := &Tree{Leaves: hashes, Levels: [][]string{level}}
	for len(level) > 1 {
		level = nextLevel(level)
		tree.Levels = append(tree.Levels, level)
	}
	tree.Root = level[0]
	return tree, nil
}

// leafHash computes H(domain_tag || 0x00 || canonical_json(projection)).
func leafHash(canonical []byte) string {
	var buf bytes.Buffer
	buf.WriteString(leafDomainTag)
	buf.WriteByte(0)
	buf.Write(canonical)
	return sha256Hex(buf.Bytes())
}

// nodeHash computes H(domain_tag || 0x00 || left || right) over the raw
// sibling hash bytes, implementing the spec's "hash the concatenation of
// children" with domain separation from leafHash.
func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodeDomainTag)
	buf.WriteByte(0)
	buf.Write(hexDecode(left))
	buf.Write(hexDecode(right))
	return sha256Hex(buf.Bytes())
}

// nextLevel folds one level of hashes into the next, duplicating a
// trailing odd leaf per §4.8.
func nextLevel(level []string) []string {
	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}
	out := make([]string, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		out[i/2] = nodeHash(level[i], level[i+1])
	}
	return out
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hexDecode(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
