// Package executor dispatches a chosen provider action per §4.4: a
// uniform dispatch contract with a per-provider deadline, emitting the
// decision-id so asynchronous feedback can be correlated later. Grounded
// on the teacher's SafeExecutor gating/idempotency shape in the original
// executor.go, trimmed to dispatch-and-record — receipt signing and
// artifact storage are this repository's pkg/crypto and pkg/merkle
// concerns, not the executor's.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DispatchOutcome classifies how a dispatch attempt concluded. The
// executor never interprets success/failure beyond recording it — reward
// computation is pkg/reward's job, driven by feedback arriving later.
type DispatchOutcome string

const (
	OutcomeSuccess DispatchOutcome = "success"
	OutcomeFailure DispatchOutcome = "failure"
	OutcomeTimeout DispatchOutcome = "timeout"
)

// DispatchResult is what a ProviderDispatcher returns for one attempt.
type DispatchResult struct {
	Outcome    DispatchOutcome
	Handle     string // opaque completion handle, provider-defined
	ErrorKind  string
}

// ProviderDispatcher sends a normalized request to one provider. Callers
// are responsible for constructing ctx with the per-provider deadline
// already attached (§4.4 "Dispatch is bounded by a per-provider
// deadline").
type ProviderDispatcher interface {
	Dispatch(ctx context.Context, providerID string, decisionID string, request map[string]any) (DispatchResult, error)
}

// AuditLog records executor activity. Grounded on the teacher's
// crypto.AuditLog.Append idiom, generalized to an interface so the
// executor has no crypto-package dependency.
type AuditLog interface {
	Append(component, event string, fields map[string]any) error
}

// Record is what the executor persists about one dispatch attempt, the
// "completion handle or error kind" half of a DecisionTrace.
type Record struct {
	DecisionID string
	ProviderID string
	Outcome    DispatchOutcome
	Handle     string
	ErrorKind  string
	DispatchedAt time.Time
}

// Tracker lets the executor detect a decision-id it has already
// dispatched, so a caller retrying the same decide() response does not
// double-dispatch. Retries with a fresh decision-id are the caller's
// responsibility per §4.4; this only guards against literal duplicates.
type Tracker interface {
	Get(decisionID string) (Record, bool)
	Put(record Record)
}

// Executor is the uniform per-provider dispatch contract.
type Executor struct {
	dispatcher ProviderDispatcher
	tracker    Tracker
	auditLog   AuditLog
	logger     *slog.Logger
}

// New constructs an Executor. auditLog and logger may be nil.
func New(dispatcher ProviderDispatcher, tracker Tracker, auditLog AuditLog, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{dispatcher: dispatcher, tracker: tracker, auditLog: auditLog, logger: logger}
}

// Dispatch sends request to providerID, correlated by decisionID. deadline
// is the per-provider bound from §4.4; a zero deadline means no explicit
// bound is enforced beyond whatever ctx already carries.
func (e *Executor) Dispatch(ctx context.Context, decisionID, providerID string, request map[string]any, deadline time.Duration) (Record, error) {
	if decisionID == "" {
		return Record{}, errors.New("executor: decisionID is required for correlation")
	}

	if e.tracker != nil {
		if prior, ok := e.tracker.Get(decisionID); ok {
			return prior, nil
		}
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	req := make(map[string]any, len(request)+1)
	for k, v := range request {
		req[k] = v
	}
	req["decision_id"] = decisionID

	result, err := e.dispatcher.Dispatch(ctx, providerID, decisionID, req)
	record := Record{
		DecisionID:   decisionID,
		ProviderID:   providerID,
		DispatchedAt: time.Now(),
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		record.Outcome = OutcomeTimeout
		record.ErrorKind = "deadline_exceeded"
	case err != nil:
		record.Outcome = OutcomeFailure
		record.ErrorKind = err.Error()
	default:
		record.Outcome = result.Outcome
		record.Handle = result.Handle
		record.ErrorKind = result.ErrorKind
	}

	if e.tracker != nil {
		e.tracker.Put(record)
	}
	if e.auditLog != nil {
		_ = e.auditLog.Append("executor", "dispatch", map[string]any{
			"decision_id": decisionID,
			"provider_id": providerID,
			"outcome":     record.Outcome,
		})
	}
	e.logger.Debug("executor dispatch", "decision_id", decisionID, "provider_id", providerID, "outcome", record.Outcome)

	// A dispatch failure or timeout is a recorded Outcome, never a Go
	// error: the executor does not interpret success/failure beyond
	// recording it, per §4.4.
	return record, nil
}
