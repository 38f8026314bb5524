// Package decisionstore implements the decision trace index described by
// §4.6: a durable key-value index by decision-id, with a secondary
// append-only log for time-ordered iteration, enforcing write-once
// semantics on the outcome tail.
package decisionstore

import (
	"context"
	"time"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

// Store is the interface every backend (memory, file, Postgres, SQLite) implements.
// Implementations must guarantee: single-writer-per-id for the outcome
// tail (CAS on "outcome is null"); concurrent writes to different ids
// proceed independently; a write that has acknowledged survives restart.
type Store interface {
	// Create persists a new trace. Returns apierr.KindAlreadyFinalized if
	// the id already exists (decision ids must never collide).
	Create(ctx context.Context, trace contracts.DecisionTrace) error

	// Get returns the trace for id, or apierr.KindUnknownDecision if absent.
	Get(ctx context.Context, id string) (contracts.DecisionTrace, error)

	// FinalizeOutcome attempts the write-once outcome/reward tail. If the
	// trace is already finalized, it returns the previously-stored
	// reward and ok=false instead of erroring — callers use
	// this to implement feedback()'s idempotence (§4.12, §8 property 2).
	// poisoned marks the trace as excluded from learning (§4.2) when the
	// computed reward was non-finite; it is written atomically with the
	// rest of the outcome tail.
	FinalizeOutcome(ctx context.Context, id string, outcome contracts.Outcome, rewardValue float64, poisoned bool) (priorReward float64, ok bool, err error)

	// MarkAbandoned marks a persisted-but-undispatched trace as abandoned
	// (§5 cancellation). No feedback is accepted for an abandoned decision.
	MarkAbandoned(ctx context.Context, id string) error

	// ScanByTimeRange returns traces with Timestamp in [from, to), ordered
	// by Timestamp then DecisionID.
	ScanByTimeRange(ctx context.Context, from, to time.Time) ([]contracts.DecisionTrace, error)

	// ScanByTenant returns all traces for a tenant, ordered by Timestamp
	// then DecisionID.
	ScanByTenant(ctx context.Context, tenant string) ([]contracts.DecisionTrace, error)

	// Retention deletes every finalized trace older than before, returning
	// the count removed. Explicit-API-only per §4.6: nothing else in this
	// package calls it.
	Retention(ctx context.Context, before time.Time) (int, error)
}

// errAlreadyExists classifies a duplicate Create call.
func errAlreadyExists(id string) error {
	return apierr.New(apierr.KindAlreadyFinalized, "decision id already exists: "+id)
}

func errUnknown(id string) error {
	return apierr.New(apierr.KindUnknownDecision, "unknown decision id: "+id)
}
