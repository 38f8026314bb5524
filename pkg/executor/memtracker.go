package executor

import "sync"

// MemTracker is an in-memory, concurrency-safe Tracker. It is process-
// scoped: a restart forgets every decisionID it has dispatched, which is
// acceptable because duplicate dispatch of an already-abandoned or
// already-fed-back decision is merely wasted work, never a correctness
// hazard (§4.4).
type MemTracker struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemTracker constructs an empty MemTracker.
func NewMemTracker() *MemTracker {
	return &MemTracker{records: make(map[string]Record)}
}

func (t *MemTracker) Get(decisionID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[decisionID]
	return r, ok
}

func (t *MemTracker) Put(record Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[record.DecisionID] = record
}
