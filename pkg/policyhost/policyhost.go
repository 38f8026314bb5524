// Package policyhost executes a declarative policy module against a
// candidate decision per §4.13: the host feeds {treaty, order, accumulator}
// in as JSON and expects {allow, reason} back out. A policy module is pure
// (no I/O, no clock, no randomness) and runs under a wall-clock cap; a
// timeout is always a hard reject, never an approval-by-default, and the
// module's verdict overrides §4.3's explore/exploit mode — a reject here is
// never softened into a weighted exploration choice.
package policyhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// PolicyInput is the single JSON document a policy module receives on stdin.
type PolicyInput struct {
	Treaty      map[string]any `json:"treaty"`
	Order       map[string]any `json:"order"`
	Accumulator map[string]any `json:"accumulator"`
}

// PolicyOutput is the verdict a policy module must produce.
type PolicyOutput struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// ReasonPolicyTimeout is the fixed reason string for a wall-clock cap
// violation, so callers can match on it without parsing prose.
const ReasonPolicyTimeout = "policy_timeout"

// Host evaluates a named policy module against one input document.
type Host interface {
	Evaluate(ctx context.Context, policyID string, in PolicyInput) (PolicyOutput, error)
}

// ErrPolicyNotFound is returned when policyID has no registered module.
var ErrPolicyNotFound = errors.New("policyhost: policy not found")

func marshalInput(in PolicyInput) ([]byte, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("policyhost: encoding input: %w", err)
	}
	return b, nil
}

func unmarshalOutput(b []byte) (PolicyOutput, error) {
	var out PolicyOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return PolicyOutput{}, fmt.Errorf("policyhost: decoding output: %w", err)
	}
	return out, nil
}
