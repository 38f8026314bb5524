// Package contracts defines the data model shared across the router,
// strategist, auditor, executor, and decision store: the workload context,
// provider records, decision traces, and audit entries described by the
// routing control plane.
package contracts

// WorkloadContext is the immutable description of a single routing request.
// It is never mutated after construction; the featurizer, validator, and
// strategist each read it without copying.
type WorkloadContext struct {
	Tenant            string            `json:"tenant"`
	WorkloadClass     string            `json:"workload_class"`
	AcceleratorClass  string            `json:"accelerator_class"`
	Region            string            `json:"region"`
	ResourceHours     float64           `json:"resource_hours"`
	Constraints       Constraints       `json:"constraints,omitempty"`
	PolicyWeights     PolicyWeights     `json:"policy_weights,omitempty"`
	CPUBucketHint     *float64          `json:"cpu_utilization,omitempty"`
	MemoryBucketHint  *float64          `json:"memory_utilization,omitempty"`
	LatencyBucketHint *float64          `json:"observed_latency_ms,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Constraints are the tenant-supplied hard/soft filters a candidate provider
// must satisfy. A zero value for a numeric field means "no constraint" —
// constraints are optional per field, not a single opt-in/opt-out toggle.
type Constraints struct {
	MaxPrice           float64 `json:"max_price,omitempty"`
	MaxLatencyMillis   float64 `json:"max_latency_ms,omitempty"`
	MinReputation      float64 `json:"min_reputation,omitempty"`
	RequiredRegion     string  `json:"required_region,omitempty"`
	RequiredAccel      string  `json:"required_accelerator,omitempty"`
	MinCapacityHours   float64 `json:"min_capacity_hours,omitempty"`
}

// PolicyWeights are the tenant's relative preferences over the dimensions the
// reward function and §4.5 scoring consider. They do not change §4.5's
// constants; they are read by the policy module (C13) and by optional
// scoring extensions, not by the core reward formula itself.
type PolicyWeights struct {
	Price        float64 `json:"price,omitempty"`
	Latency      float64 `json:"latency,omitempty"`
	Reputation   float64 `json:"reputation,omitempty"`
	Availability float64 `json:"availability,omitempty"`
}

// Candidate is a provider offered to a decide() call, scoped to one request.
// The action space is request-scoped: a Candidate's ID need not have been
// seen before, and the value table treats it as a fresh zero-valued entry.
type Candidate struct {
	Provider Provider `json:"provider"`
}
