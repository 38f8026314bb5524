package router

import "github.com/lattice-compute/routectl/pkg/adaptive"

// StatusResponse is the §6 GET /status body: counts, rates, value-table
// size, exploration epsilon, and the signal source's cache hit rate.
type StatusResponse struct {
	DecisionsTotal     int64   `json:"decisions_total"`
	FeedbackTotal      int64   `json:"feedback_total"`
	ErrorsTotal        int64   `json:"errors_total"`
	NoViableTotal      int64   `json:"no_viable_providers_total"`
	PolicyRejectsTotal int64   `json:"policy_rejects_total"`
	PoisonedTotal      int64   `json:"poisoned_feedback_total"`
	ValueTableSize     int     `json:"value_table_size"`
	Epsilon            float64 `json:"epsilon"`
	SignalCacheHits    int64   `json:"signal_cache_hits,omitempty"`
	SignalCacheMisses  int64   `json:"signal_cache_misses,omitempty"`
}

// signalStats is satisfied by pkg/adaptive.CachingSource, consulted only
// if the configured AdaptiveSignal also exposes cache statistics.
type signalStats interface {
	Stats() adaptive.CacheStats
}

// Status aggregates the router's own counters with the strategist's
// value-table size and current exploration rate, per §4.12 "status()".
func (r *Router) Status() StatusResponse {
	resp := StatusResponse{
		DecisionsTotal:     r.metrics.decisionsTotal.Load(),
		FeedbackTotal:      r.metrics.feedbackTotal.Load(),
		ErrorsTotal:        r.metrics.errorsTotal.Load(),
		NoViableTotal:      r.metrics.noViableTotal.Load(),
		PolicyRejectsTotal: r.metrics.policyRejectsTotal.Load(),
		PoisonedTotal:      r.metrics.poisonedTotal.Load(),
		ValueTableSize:     r.deps.Strategist.Size(),
		Epsilon:            r.deps.Strategist.Epsilon(),
	}
	if ss, ok := r.deps.Signal.(signalStats); ok {
		stats := ss.Stats()
		resp.SignalCacheHits, resp.SignalCacheMisses = stats.Hits, stats.Misses
	}
	return resp
}
