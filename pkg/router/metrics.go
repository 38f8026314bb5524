package router

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Metrics holds the router's own counters and a latency histogram,
// rendered by GET /metrics in Prometheus text exposition format and
// summarized by GET /status. Kept separate from the teacher's
// pkg/observability OTel provider (which push-exports RED metrics over
// OTLP): this is the pull-based snapshot §6 requires at a fixed local
// endpoint, not a duplicate of the push pipeline.
type Metrics struct {
	decisionsTotal     atomicCounter
	feedbackTotal      atomicCounter
	errorsTotal        atomicCounter
	noViableTotal      atomicCounter
	policyRejectsTotal atomicCounter
	poisonedTotal      atomicCounter
	decisionLatency    *histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		decisionLatency: newHistogram([]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}),
	}
}

type atomicCounter struct{ v int64 }

func (c *atomicCounter) Add(n int64)  { atomic.AddInt64(&c.v, n) }
func (c *atomicCounter) Load() int64  { return atomic.LoadInt64(&c.v) }

// histogram is a fixed-bucket cumulative histogram, the minimum shape
// needed to render a Prometheus "_bucket"/"_sum"/"_count" family.
type histogram struct {
	mu      sync.Mutex
	bounds  []float64
	buckets []int64
	sum     float64
	count   int64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, buckets: make([]int64, len(bounds)+1)}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.bounds {
		if v <= b {
			h.buckets[i]++
		}
	}
	h.buckets[len(h.bounds)]++ // +Inf bucket
}

func (h *histogram) snapshot() (bounds []float64, cumulative []int64, sum float64, count int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cumulative = append([]int64(nil), h.buckets...)
	return h.bounds, cumulative, h.sum, h.count
}

// RenderPrometheus writes every counter and the decision-latency
// histogram in Prometheus text exposition format.
func (m *Metrics) RenderPrometheus() string {
	var b strings.Builder

	writeCounter(&b, "gpuroute_decisions_total", "Total decide() calls", m.decisionsTotal.Load())
	writeCounter(&b, "gpuroute_feedback_total", "Total feedback() calls", m.feedbackTotal.Load())
	writeCounter(&b, "gpuroute_errors_total", "Total requests that returned a classified error", m.errorsTotal.Load())
	writeCounter(&b, "gpuroute_no_viable_providers_total", "Total decide() calls rejected for lack of a viable candidate", m.noViableTotal.Load())
	writeCounter(&b, "gpuroute_policy_rejects_total", "Total decide() calls rejected by the policy host", m.policyRejectsTotal.Load())
	writeCounter(&b, "gpuroute_poisoned_feedback_total", "Total feedback() calls with a non-finite reward", m.poisonedTotal.Load())

	bounds, cumulative, sum, count := m.decisionLatency.snapshot()
	fmt.Fprintf(&b, "# HELP gpuroute_decision_latency_seconds decide() end-to-end latency\n")
	fmt.Fprintf(&b, "# TYPE gpuroute_decision_latency_seconds histogram\n")
	for i, bound := range bounds {
		fmt.Fprintf(&b, "gpuroute_decision_latency_seconds_bucket{le=\"%g\"} %d\n", bound, cumulative[i])
	}
	fmt.Fprintf(&b, "gpuroute_decision_latency_seconds_bucket{le=\"+Inf\"} %d\n", cumulative[len(cumulative)-1])
	fmt.Fprintf(&b, "gpuroute_decision_latency_seconds_sum %g\n", sum)
	fmt.Fprintf(&b, "gpuroute_decision_latency_seconds_count %d\n", count)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %d\n", name, value)
}
