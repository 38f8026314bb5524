// Package featurizer discretizes a workload context plus an optional
// adaptive-exploration signal into the bounded-length state key the
// strategist's value table is indexed by (§4.1).
package featurizer

import (
	"fmt"
	"strings"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// bucket boundaries, in ascending order; BucketOf returns the index of the
// first boundary the value is <= to, or len(boundaries) if it exceeds all.
var (
	cpuBoundaries     = []float64{0.25, 0.50, 0.75, 0.90}
	memoryBoundaries  = []float64{0.25, 0.50, 0.75, 0.90}
	latencyBoundaries = []float64{50, 100, 250, 500, 1000} // milliseconds
)

// noneToken is the literal placeholder used when an optional field is
// absent, so the key's field count is invariant regardless of which
// optional context fields were supplied. Per §4.1.
const noneToken = "none"

// BuildStateKey is pure and total: it never errors and never hashes
// unknown fields away — categorical fields pass through verbatim, unknown
// extra fields are dropped (not hashed), and continuous fields map to a
// fixed bucket token. Equality on the returned key is byte-exact and
// stable across restarts (no randomness, no time dependence).
func BuildStateKey(ctx contracts.WorkloadContext, adaptiveSignal *float64) string {
	fields := []string{
		sanitize(ctx.WorkloadClass),
		sanitize(ctx.AcceleratorClass),
		sanitize(ctx.Region),
		bucketToken("cpu", ctx.CPUBucketHint, cpuBoundaries),
		bucketToken("mem", ctx.MemoryBucketHint, memoryBoundaries),
		bucketToken("lat", ctx.LatencyBucketHint, latencyBoundaries),
		signalToken(adaptiveSignal),
	}
	return strings.Join(fields, "|")
}

func signalToken(signal *float64) string {
	if signal == nil {
		return noneToken
	}
	return fmt.Sprintf("sig%d", bucketOf(*signal, []float64{0.2, 0.4, 0.6, 0.8}))
}

func bucketToken(name string, v *float64, boundaries []float64) string {
	if v == nil {
		return noneToken
	}
	return fmt.Sprintf("%s%d", name, bucketOf(*v, boundaries))
}

// bucketOf returns the index of the first boundary greater than or equal to v,
// or len(boundaries) if v exceeds every boundary. Ties (v == boundary) fall
// into the lower bucket, so bucket assignment is a pure function of v.
func bucketOf(v float64, boundaries []float64) int {
	for i, b := range boundaries {
		if v <= b {
			return i
		}
	}
	return len(boundaries)
}

// sanitize passes categorical fields through verbatim except for the
// delimiter byte, which would otherwise corrupt the field-count invariant;
// a literal '|' in a categorical field is replaced with '_' rather than dropped.
func sanitize(s string) string {
	if s == "" {
		return noneToken
	}
	return strings.ReplaceAll(s, "|", "_")
}
