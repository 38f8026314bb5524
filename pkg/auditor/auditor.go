// Package auditor implements the constraint validator described by §4.3:
// it filters candidates against tenant constraints and provider state,
// classifies violations in deterministic order, and produces an audit
// entry for every candidate it sees.
package auditor

import (
	"time"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// Mode selects strict (hard reject) or permissive (flag-only) enforcement,
// per §4.3.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModePermissive Mode = "permissive"
)

// AnomalyDetector inspects a candidate's evaluation in the context of
// recent history and optionally annotates the audit entry with a note,
// without changing its status. Implementations must be side-effect-free
// with respect to the validator's decision (§4.3: "without changing
// status").
type AnomalyDetector interface {
	Detect(entry contracts.AuditEntry, candidate contracts.Provider, ctx contracts.WorkloadContext) (note string, found bool)
}

// Auditor validates candidates against tenant constraints and returns
// audit entries. It holds no mutable state of its own beyond an optional
// clock override for deterministic tests.
type Auditor struct {
	mode      Mode
	detectors []AnomalyDetector
	clock     func() time.Time
}

// New constructs an Auditor in the given mode with optional anomaly
// detectors run (in order) on every candidate.
func New(mode Mode, detectors ...AnomalyDetector) *Auditor {
	return &Auditor{mode: mode, clock: time.Now, detectors: detectors}
}

// WithClock overrides the Auditor's time source, for deterministic tests.
func (a *Auditor) WithClock(clock func() time.Time) *Auditor {
	a.clock = clock
	return a
}

// Result is the outcome of validating one candidate.
type Result struct {
	Entry   contracts.AuditEntry
	Allowed bool // true if the candidate may be passed to the strategist
}

// Validate checks every candidate against ctx's constraints, returning one
// Result per candidate in input order. Per the invariant in §4.3, exactly
// one audit entry per candidate per decision is produced here; the caller
// (router) is responsible for appending every returned Entry to the audit
// log even when Allowed is false.
func (a *Auditor) Validate(decisionID, stateKey string, ctx contracts.WorkloadContext, candidates []contracts.Provider) []Result {
	results := make([]Result, 0, len(candidates))
	for _, p := range candidates {
		results = append(results, a.validateOne(decisionID, stateKey, ctx, p))
	}
	return results
}

func (a *Auditor) validateOne(decisionID, stateKey string, ctx contracts.WorkloadContext, p contracts.Provider) Result {
	violations := a.violationsFor(ctx, p)

	entry := contracts.AuditEntry{
		Timestamp:  a.clock(),
		DecisionID: decisionID,
		StateKey:   stateKey,
		ProviderID: p.ID,
		Violations: violations,
	}

	switch {
	case len(violations) == 0:
		entry.Status = contracts.StatusApproved
	case a.mode == ModeStrict:
		entry.Status = contracts.StatusRejected
	default:
		entry.Status = contracts.StatusFlagged
	}

	for _, d := range a.detectors {
		if note, found := d.Detect(entry, p, ctx); found {
			if entry.AnomalyNote == "" {
				entry.AnomalyNote = note
			} else {
				entry.AnomalyNote += "; " + note
			}
		}
	}

	return Result{Entry: entry, Allowed: entry.Status != contracts.StatusRejected}
}

// violationsFor runs the independent per-dimension checks in the
// deterministic order contracts.ViolationOrder fixes.
func (a *Auditor) violationsFor(ctx contracts.WorkloadContext, p contracts.Provider) []contracts.Violation {
	c := ctx.Constraints
	checks := map[contracts.Violation]bool{
		contracts.ViolationPrice:       checkPrice(c, p, ctx.AcceleratorClass),
		contracts.ViolationLatency:     checkLatency(c, p),
		contracts.ViolationReputation:  checkReputation(c, p),
		contracts.ViolationRegion:      checkRegion(c, ctx.Region, p),
		contracts.ViolationAccelerator: checkAccelerator(c, ctx.AcceleratorClass, p),
		contracts.ViolationCapacity:    checkCapacity(c, p),
	}

	var violations []contracts.Violation
	for _, v := range contracts.ViolationOrder {
		if checks[v] {
			violations = append(violations, v)
		}
	}
	return violations
}

func checkPrice(c contracts.Constraints, p contracts.Provider, accel string) bool {
	if c.MaxPrice <= 0 {
		return false
	}
	price, ok := p.EffectivePrice(accel)
	if !ok {
		return false // accelerator mismatch is reported separately
	}
	return price > c.MaxPrice
}

func checkLatency(c contracts.Constraints, p contracts.Provider) bool {
	if c.MaxLatencyMillis <= 0 {
		return false
	}
	return p.EffectiveLatencyMillis() > c.MaxLatencyMillis
}

func checkReputation(c contracts.Constraints, p contracts.Provider) bool {
	if c.MinReputation <= 0 {
		return false
	}
	return p.EffectiveReputation() < c.MinReputation
}

func checkRegion(c contracts.Constraints, requestedRegion string, p contracts.Provider) bool {
	region := c.RequiredRegion
	if region == "" {
		region = requestedRegion
	}
	if region == "" {
		return false
	}
	return !p.Regions[region]
}

func checkAccelerator(c contracts.Constraints, requestedAccel string, p contracts.Provider) bool {
	accel := c.RequiredAccel
	if accel == "" {
		accel = requestedAccel
	}
	if accel == "" {
		return false
	}
	return !p.AcceleratorClasses[accel]
}

func checkCapacity(c contracts.Constraints, p contracts.Provider) bool {
	if c.MinCapacityHours <= 0 {
		return false
	}
	return p.CapacityRemaining < c.MinCapacityHours
}
