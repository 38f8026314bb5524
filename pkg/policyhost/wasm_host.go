package policyhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/lattice-compute/routectl/pkg/artifacts"
)

// OutputMaxBytes bounds the combined stdout+stderr a policy module may
// produce, adapted from the teacher's WasiSandbox output ceiling.
const OutputMaxBytes = 256 * 1024

// WASMHost runs each policy as a wazero-hosted WASI module resolved by
// content hash from an artifact store, grounded on the teacher's
// WasiSandbox/WASISandbox: deny-by-default instantiation (no filesystem, no
// network, no ambient clock or randomness), memory capped in 64KB pages,
// wall-clock capped via context deadline. A module receives PolicyInput as
// JSON on stdin and must write PolicyOutput as JSON to stdout.
type WASMHost struct {
	runtime  wazero.Runtime
	modules  artifacts.Store
	hashes   map[string]string // policyID -> content hash
	cfg      wazero.ModuleConfig
	timeout  time.Duration
	memPages uint32
}

// WASMHostConfig configures a WASMHost.
type WASMHostConfig struct {
	// WallClockCap bounds one Evaluate call; exceeding it is always a hard
	// reject with ReasonPolicyTimeout, never a pass-through approval.
	WallClockCap time.Duration
	// MemoryLimitBytes bounds the module's linear memory; rounded down to
	// whole 64KB pages, minimum one page.
	MemoryLimitBytes int64
}

// NewWASMHost builds a WASMHost over modules, a content-addressable store
// mapping a policy's hash to its compiled WASM bytes (e.g. the same
// pkg/artifacts.Store backing decision-trace or federation payload blobs).
func NewWASMHost(ctx context.Context, modules artifacts.Store, cfg WASMHostConfig) (*WASMHost, error) {
	rcfg := wazero.NewRuntimeConfig()
	pages := uint32(1)
	if cfg.MemoryLimitBytes > 0 {
		pages = uint32(cfg.MemoryLimitBytes / (64 * 1024))
		if pages == 0 {
			pages = 1
		}
	}
	rcfg = rcfg.WithMemoryLimitPages(pages)

	r := wazero.NewRuntimeWithConfig(ctx, rcfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("policyhost: instantiating WASI: %w", err)
	}

	modCfg := wazero.NewModuleConfig().WithName("policy")
	// Deny-by-default: no WithFSConfig, no WithSysNanotime, no
	// WithRandSource, no WithEnv. A policy module is pure.

	return &WASMHost{
		runtime:  r,
		modules:  modules,
		hashes:   make(map[string]string),
		cfg:      modCfg,
		timeout:  cfg.WallClockCap,
		memPages: pages,
	}, nil
}

// Register binds policyID to the module stored under contentHash.
func (h *WASMHost) Register(policyID, contentHash string) {
	h.hashes[policyID] = contentHash
}

// Evaluate runs the policy module for policyID against in, enforcing the
// wall-clock cap. A module that writes to stderr, fails to instantiate, or
// exceeds the deadline is treated as a hard reject, never a silent allow.
func (h *WASMHost) Evaluate(ctx context.Context, policyID string, in PolicyInput) (PolicyOutput, error) {
	hash, ok := h.hashes[policyID]
	if !ok {
		return PolicyOutput{}, ErrPolicyNotFound
	}

	wasmBytes, err := h.modules.Get(ctx, hash)
	if err != nil {
		return PolicyOutput{}, fmt.Errorf("policyhost: loading module %s (%s): %w", policyID, hash, err)
	}

	execCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	input, err := marshalInput(in)
	if err != nil {
		return PolicyOutput{}, err
	}

	var stdout, stderr bytes.Buffer
	modCfg := h.cfg.
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	compiled, err := h.runtime.CompileModule(execCtx, wasmBytes)
	if err != nil {
		return PolicyOutput{}, fmt.Errorf("policyhost: compiling %s: %w", policyID, err)
	}
	defer func() { _ = compiled.Close(execCtx) }()

	mod, err := h.runtime.InstantiateModule(execCtx, compiled, modCfg)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return PolicyOutput{Allow: false, Reason: ReasonPolicyTimeout}, nil
		}
		return PolicyOutput{}, fmt.Errorf("policyhost: instantiating %s: %w", policyID, err)
	}
	defer func() { _ = mod.Close(execCtx) }()

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return PolicyOutput{Allow: false, Reason: ReasonPolicyTimeout}, nil
	}

	if stdout.Len()+stderr.Len() > OutputMaxBytes {
		return PolicyOutput{}, fmt.Errorf("policyhost: %s exceeded output cap of %d bytes", policyID, OutputMaxBytes)
	}
	if stderr.Len() > 0 {
		return PolicyOutput{}, fmt.Errorf("policyhost: %s wrote to stderr: %s", policyID, stderr.String())
	}

	return unmarshalOutput(stdout.Bytes())
}

// Close shuts down the underlying wazero runtime.
func (h *WASMHost) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}
