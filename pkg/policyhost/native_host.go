package policyhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
)

// NativeHost is the in-process CEL fallback for when a deployment cannot
// or does not want to pay wazero's compile/instantiate cost per decision,
// adapted from the teacher's PolicyEngine: a CEL expression per policy ID,
// evaluated against the same {treaty, order, accumulator} document a WASM
// module would receive. Unlike the teacher's engine, evaluation failure and
// "policy not found" are both hard rejects — a native policy never defaults
// to allow.
type NativeHost struct {
	mu      sync.RWMutex
	env     *cel.Env
	program map[string]cel.Program
	source  map[string]string
}

// NewNativeHost builds the shared CEL environment. Every policy sees three
// dynamic maps: treaty, order, accumulator.
func NewNativeHost() (*NativeHost, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("treaty", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("order", types.NewMapType(types.StringType, types.DynType)),
			decls.NewVariable("accumulator", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("policyhost: creating CEL env: %w", err)
	}
	return &NativeHost{
		env:     env,
		program: make(map[string]cel.Program),
		source:  make(map[string]string),
	}, nil
}

// LoadPolicy compiles source (a CEL expression that must evaluate to a
// bool) and registers it under policyID, replacing any prior definition.
func (h *NativeHost) LoadPolicy(policyID, source string) error {
	ast, issues := h.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("policyhost: compiling policy %s: %w", policyID, issues.Err())
	}
	prg, err := h.env.Program(ast)
	if err != nil {
		return fmt.Errorf("policyhost: building program for %s: %w", policyID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.program[policyID] = prg
	h.source[policyID] = source
	return nil
}

// Definitions returns a copy of the currently loaded policy sources, keyed
// by policy ID.
func (h *NativeHost) Definitions() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.source))
	for k, v := range h.source {
		out[k] = v
	}
	return out
}

// Evaluate runs the CEL program registered under policyID. A missing
// policy, a CEL evaluation error, or a non-bool result are all hard
// rejects — this host never allows by default.
func (h *NativeHost) Evaluate(ctx context.Context, policyID string, in PolicyInput) (PolicyOutput, error) {
	h.mu.RLock()
	prg, ok := h.program[policyID]
	h.mu.RUnlock()
	if !ok {
		return PolicyOutput{}, ErrPolicyNotFound
	}

	input := map[string]any{
		"treaty":      in.Treaty,
		"order":       in.Order,
		"accumulator": in.Accumulator,
	}

	out, _, err := prg.ContextEval(ctx, input)
	if err != nil {
		return PolicyOutput{Allow: false, Reason: fmt.Sprintf("policy evaluation error: %v", err)}, nil
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return PolicyOutput{Allow: false, Reason: "policy did not evaluate to a boolean"}, nil
	}
	if !allowed {
		return PolicyOutput{Allow: false, Reason: fmt.Sprintf("denied by policy %s", policyID)}, nil
	}
	return PolicyOutput{Allow: true, Reason: fmt.Sprintf("allowed by policy %s", policyID)}, nil
}
