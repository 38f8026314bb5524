package contracts

import "time"

// FederationRecord is a self-describing event exchanged between federation
// peers, per §3. Two records sharing an ID with different PayloadHash are a
// conflict resolved by pkg/conflict.
type FederationRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        string          `json:"type"`
	Component   string          `json:"component"`
	Version     string          `json:"version"`
	PayloadHash string          `json:"payload_hash"`
	Signature   string          `json:"signature,omitempty"`
	SignerID    string          `json:"signer_id,omitempty"`
	Payload     map[string]any  `json:"payload"`
	RootAtWrite string          `json:"root_at_write,omitempty"`
}

// RecordID satisfies pkg/federation's Record interface.
func (r FederationRecord) RecordID() string { return r.ID }

// AnchorClass is a fixed, totally ordered enum of attestation strength used
// by the conflict resolver (§4.11). Lower index = stronger/preferred.
type AnchorClass int

const (
	AnchorClassBTC AnchorClass = iota
	AnchorClassTSA
	AnchorClassEVM
	AnchorClassUnknown
)

// String renders the anchor class name, used for deterministic tie-break
// logging and for parsing configuration-supplied class names.
func (c AnchorClass) String() string {
	switch c {
	case AnchorClassBTC:
		return "BTC"
	case AnchorClassTSA:
		return "TSA"
	case AnchorClassEVM:
		return "EVM"
	default:
		return "UNKNOWN"
	}
}

// ParseAnchorClass maps a class name to its AnchorClass, defaulting to
// AnchorClassUnknown (weakest / sorts last) for unrecognized names.
func ParseAnchorClass(name string) AnchorClass {
	switch name {
	case "BTC":
		return AnchorClassBTC
	case "TSA":
		return AnchorClassTSA
	case "EVM":
		return AnchorClassEVM
	default:
		return AnchorClassUnknown
	}
}

// Anchor is an external attestation pinning a FederationRecord's content to
// a trust domain, per the Glossary.
type Anchor struct {
	RecordID    string      `json:"record_id"`
	Class       AnchorClass `json:"class"`
	Timestamp   string      `json:"timestamp"` // parsed permissively; may be empty/invalid
	Reference   string      `json:"reference"` // e.g. tx hash, TSA serial
	ContentHash string      `json:"content_hash"`
	Superseded  bool        `json:"superseded,omitempty"`
}

// MergeReceipt documents one deterministic merge (§4.10).
type MergeReceipt struct {
	LeftRoot       string    `json:"left_root"`
	RightRoot      string    `json:"right_root"`
	MergedRoot     string    `json:"merged_root"`
	EventsReplayed int       `json:"events_replayed"`
	PolicyID       string    `json:"policy_id"`
	Timestamp      time.Time `json:"timestamp"`
}
