// Package router is the ingress core described by §4.12: it accepts
// decide/feedback/status operations, fans them into the strategist,
// auditor, policy host, executor, and decision store, and is the only
// package that knows how those components compose into one request.
// Grounded on the teacher's pkg/api/handlers.go (typed request/response
// structs, apierror classification at the boundary) and
// pkg/console/server.go (stdlib net/http + ServeMux wiring).
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/auditor"
	"github.com/lattice-compute/routectl/pkg/contracts"
	"github.com/lattice-compute/routectl/pkg/decisionstore"
	"github.com/lattice-compute/routectl/pkg/executor"
	"github.com/lattice-compute/routectl/pkg/featurizer"
	"github.com/lattice-compute/routectl/pkg/kernel"
	"github.com/lattice-compute/routectl/pkg/policyhost"
	"github.com/lattice-compute/routectl/pkg/reward"
	"github.com/lattice-compute/routectl/pkg/strategist"
)

// AdaptiveSignal is the narrow slice of pkg/adaptive.Source the router
// needs, so this package does not depend on adaptive's HTTP transport.
type AdaptiveSignal interface {
	Sample(ctx context.Context) (value float64, ok bool)
}

// AuditSink persists audit entries independent of the decision trace. A
// nil sink is valid — entries are still computed, just not durably
// logged.
type AuditSink interface {
	Append(ctx context.Context, entry contracts.AuditEntry) error
}

// IDGenerator produces a fresh decision id per call.
type IDGenerator func() string

// Deps are every collaborator the Router fans requests into. Only Store,
// Strategist, and Auditor are required; PolicyHost, Executor,
// AuditSink, and Signal are optional (nil disables that stage).
type Deps struct {
	Strategist *strategist.Strategist
	Auditor    *auditor.Auditor
	Reward     reward.Constants
	Store      decisionstore.Store
	Executor   *executor.Executor
	Signal     AdaptiveSignal
	PolicyHost policyhost.Host
	PolicyID   string
	AuditSink  AuditSink
	IDGen      IDGenerator
	Clock      func() time.Time
	Logger     *slog.Logger

	// DecisionDeadline bounds the adaptive-signal sample and the executor
	// dispatch inside one decide() call, per §5 "suspension points".
	DecisionDeadline time.Duration

	// Limiter bounds per-tenant decide() throughput (§4.12 C12
	// "bounded per-operation queues"), adapted from the teacher's
	// pkg/kernel.LimiterStore token-bucket idiom. Nil disables backpressure.
	Limiter       kernel.LimiterStore
	LimiterPolicy kernel.BackpressurePolicy

	// Observability emits RED-pattern traces/metrics around Decide and
	// Feedback, per the teacher's pkg/observability.Provider. Nil disables
	// tracing — the Prometheus counters in Metrics still work either way.
	Observability OperationTracker
}

// OperationTracker is the narrow slice of pkg/observability.Provider the
// router needs: start a span/metric for an operation, closed by the
// returned func with the operation's terminal error (nil on success).
type OperationTracker interface {
	TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

// Router wires one request at a time through C1-C6/C13, per §4.12.
type Router struct {
	deps    Deps
	metrics *Metrics
	ingress *ingressValidator
}

// New constructs a Router. It panics if a required dependency is missing —
// a misconfigured router is a startup-time bug, not a runtime condition.
func New(deps Deps) *Router {
	if deps.Store == nil || deps.Strategist == nil || deps.Auditor == nil {
		panic("router: Store, Strategist, and Auditor are required")
	}
	if deps.IDGen == nil {
		deps.IDGen = defaultIDGenerator
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reward == (reward.Constants{}) {
		deps.Reward = reward.DefaultConstants()
	}
	return &Router{deps: deps, metrics: newMetrics(), ingress: newIngressValidator()}
}

// DecideRequest is the §6 POST /decisions body.
type DecideRequest struct {
	Tenant      string                    `json:"tenant"`
	Context     contracts.WorkloadContext `json:"context"`
	Candidates  []contracts.Provider      `json:"candidates"`
	SignalOverride *float64               `json:"signal,omitempty"`
}

// DecideResponse is the §6 200 response body for POST /decisions.
type DecideResponse struct {
	DecisionID string                  `json:"decision_id"`
	Provider   string                  `json:"provider"`
	Metadata   contracts.ActionMetadata `json:"metadata"`
}

// Decide runs one decision: signal sample -> state key -> constraint
// filter -> policy gate -> action selection -> dispatch -> persist.
func (r *Router) Decide(ctx context.Context, req DecideRequest) (resp DecideResponse, err error) {
	start := time.Now()
	r.metrics.decisionsTotal.Add(1)
	defer func() { r.metrics.decisionLatency.Observe(time.Since(start).Seconds()) }()

	if r.deps.Observability != nil {
		var end func(error)
		ctx, end = r.deps.Observability.TrackOperation(ctx, "router.decide", attribute.String("tenant", req.Tenant))
		defer func() { end(err) }()
	}

	if req.Tenant == "" {
		r.metrics.errorsTotal.Add(1)
		return DecideResponse{}, apierr.New(apierr.KindInvalidInput, "tenant is required")
	}
	if len(req.Candidates) == 0 {
		r.metrics.errorsTotal.Add(1)
		return DecideResponse{}, apierr.New(apierr.KindInvalidInput, "at least one candidate is required")
	}

	if r.deps.Limiter != nil {
		if err := kernel.EvaluateBackpressure(ctx, r.deps.Limiter, req.Tenant, r.deps.LimiterPolicy); err != nil {
			r.metrics.errorsTotal.Add(1)
			return DecideResponse{}, apierr.Wrap(apierr.KindConflict, "tenant exceeded decision throughput", err)
		}
	}

	deadline := r.deps.DecisionDeadline
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	var signal *float64
	if req.SignalOverride != nil {
		signal = req.SignalOverride
	} else if r.deps.Signal != nil {
		if v, ok := r.deps.Signal.Sample(ctx); ok {
			signal = &v
		}
	}

	stateKey := featurizer.BuildStateKey(req.Context, signal)
	decisionID := r.deps.IDGen()

	results := r.deps.Auditor.Validate(decisionID, stateKey, req.Context, req.Candidates)
	var allowed []string
	allowedProviders := make(map[string]contracts.Provider, len(results))
	for _, res := range results {
		if r.deps.AuditSink != nil {
			if err := r.deps.AuditSink.Append(ctx, res.Entry); err != nil {
				r.deps.Logger.Warn("audit sink append failed", "decision_id", decisionID, "err", err)
			}
		}
		if res.Allowed {
			allowed = append(allowed, res.Entry.ProviderID)
			for _, c := range req.Candidates {
				if c.ID == res.Entry.ProviderID {
					allowedProviders[c.ID] = c
				}
			}
		}
	}

	if len(allowed) == 0 {
		r.metrics.errorsTotal.Add(1)
		r.metrics.noViableTotal.Add(1)
		return DecideResponse{}, apierr.New(apierr.KindNoViableProviders, "no candidate satisfied tenant constraints")
	}

	if r.deps.PolicyHost != nil {
		out, err := r.deps.PolicyHost.Evaluate(ctx, r.deps.PolicyID, policyhost.PolicyInput{
			Treaty: map[string]any{
				"constraints":    req.Context.Constraints,
				"policy_weights": req.Context.PolicyWeights,
			},
			Order: map[string]any{
				"tenant":            req.Tenant,
				"workload_class":    req.Context.WorkloadClass,
				"accelerator_class": req.Context.AcceleratorClass,
				"region":            req.Context.Region,
				"resource_hours":    req.Context.ResourceHours,
				"candidates":        allowed,
			},
			Accumulator: map[string]any{
				"state_key":        stateKey,
				"epsilon":          r.deps.Strategist.Epsilon(),
				"value_table_size": r.deps.Strategist.Size(),
			},
		})
		if err != nil {
			r.metrics.errorsTotal.Add(1)
			return DecideResponse{}, apierr.Wrap(apierr.KindInternal, "policy host evaluation failed", err)
		}
		if !out.Allow {
			r.metrics.errorsTotal.Add(1)
			r.metrics.policyRejectsTotal.Add(1)
			reason := out.Reason
			if reason == "" {
				reason = "rejected by policy"
			}
			return DecideResponse{}, apierr.New(apierr.KindPolicyReject, reason)
		}
	}

	rec, err := r.deps.Strategist.Recommend(stateKey, allowed, signal)
	if err != nil {
		r.metrics.errorsTotal.Add(1)
		if errors.Is(err, strategist.ErrNoViableProviders) {
			return DecideResponse{}, apierr.New(apierr.KindNoViableProviders, err.Error())
		}
		return DecideResponse{}, apierr.Wrap(apierr.KindInternal, "strategist recommendation failed", err)
	}

	trace := contracts.DecisionTrace{
		DecisionID: decisionID,
		Timestamp:  r.deps.Clock(),
		Tenant:     req.Tenant,
		StateKey:   stateKey,
		Action:     rec.ProviderID,
		Metadata:   rec.Metadata,
		Context:    req.Context,
	}

	if ctx.Err() != nil {
		// Cancelled before the dispatch suspension point: the decision is
		// persisted but never executed, and no feedback may follow (§5).
		if werr := r.deps.Store.Create(ctx2(), trace); werr == nil {
			_ = r.deps.Store.MarkAbandoned(ctx2(), decisionID)
		}
		r.metrics.errorsTotal.Add(1)
		return DecideResponse{}, apierr.Wrap(apierr.KindUpstreamTimeout, "decision cancelled before dispatch", ctx.Err())
	}

	if r.deps.Executor != nil {
		dispatchReq := map[string]any{
			"tenant":   req.Tenant,
			"provider": rec.ProviderID,
		}
		// Dispatch never returns a Go error for a provider-level outcome
		// (success/failure/timeout are all recorded); an error here means
		// the request itself could not be issued.
		if _, err := r.deps.Executor.Dispatch(ctx, decisionID, rec.ProviderID, dispatchReq, deadline); err != nil {
			r.metrics.errorsTotal.Add(1)
			return DecideResponse{}, apierr.Wrap(apierr.KindInternal, "executor dispatch failed", err)
		}
	}

	if err := r.deps.Store.Create(ctx, trace); err != nil {
		r.metrics.errorsTotal.Add(1)
		return DecideResponse{}, apierr.Wrap(apierr.KindInternal, "failed to persist decision trace", err)
	}

	return DecideResponse{DecisionID: decisionID, Provider: rec.ProviderID, Metadata: rec.Metadata}, nil
}

// ctx2 returns a background context for a best-effort write performed
// after the caller's context has already been cancelled (marking a
// decision abandoned must not itself be cancellable by the same timeout
// that triggered it).
func ctx2() context.Context { return context.Background() }

// FeedbackRequest is the §6 POST /feedback body.
type FeedbackRequest struct {
	DecisionID string            `json:"decision_id"`
	Outcome    contracts.Outcome `json:"outcome"`
}

// FeedbackResponse is the §6 200 response body for POST /feedback.
type FeedbackResponse struct {
	Reward      float64 `json:"reward"`
	Explanation string  `json:"explanation"`
}

// Feedback computes the reward for decisionID's outcome, applies it to the
// value table, and persists the write-once outcome tail. A second call for
// the same decisionID returns the prior reward unchanged (§4.12).
func (r *Router) Feedback(ctx context.Context, req FeedbackRequest) (resp FeedbackResponse, err error) {
	r.metrics.feedbackTotal.Add(1)

	if r.deps.Observability != nil {
		var end func(error)
		ctx, end = r.deps.Observability.TrackOperation(ctx, "router.feedback", attribute.String("decision_id", req.DecisionID))
		defer func() { end(err) }()
	}

	if req.DecisionID == "" {
		r.metrics.errorsTotal.Add(1)
		return FeedbackResponse{}, apierr.New(apierr.KindInvalidInput, "decision_id is required")
	}

	trace, err := r.deps.Store.Get(ctx, req.DecisionID)
	if err != nil {
		r.metrics.errorsTotal.Add(1)
		return FeedbackResponse{}, err
	}
	if trace.Abandoned {
		r.metrics.errorsTotal.Add(1)
		return FeedbackResponse{}, apierr.New(apierr.KindInvalidInput, "decision was abandoned, no feedback accepted")
	}

	rewardValue := r.deps.Reward.Compute(req.Outcome)
	poisoned := math.IsNaN(rewardValue) || math.IsInf(rewardValue, 0)

	prior, applied, err := r.deps.Store.FinalizeOutcome(ctx, req.DecisionID, req.Outcome, rewardValue, poisoned)
	if err != nil {
		r.metrics.errorsTotal.Add(1)
		return FeedbackResponse{}, err
	}
	if !applied {
		return FeedbackResponse{Reward: prior, Explanation: "decision already finalized; returning prior reward"}, nil
	}

	newQ, ok := r.deps.Strategist.Update(trace.StateKey, trace.Action, rewardValue, nil, nil)
	if !ok {
		r.metrics.poisonedTotal.Add(1)
		return FeedbackResponse{Reward: rewardValue, Explanation: "reward was non-finite; decision marked poisoned, no value-table update applied"}, nil
	}
	r.deps.Strategist.Decay()

	return FeedbackResponse{
		Reward:      rewardValue,
		Explanation: fmt.Sprintf("value(%s, %s) updated to %.4f", trace.StateKey, trace.Action, newQ),
	}, nil
}

func defaultIDGenerator() string {
	return "dec-" + uuid.NewString()
}
