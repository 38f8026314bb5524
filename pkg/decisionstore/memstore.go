package decisionstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// MemStore is an in-memory Store, used by tests and by the single-node
// default when no durable path is configured. A real process restart loses
// its contents — callers needing crash-safety use FileStore or
// PostgresStore instead.
type MemStore struct {
	mu     sync.RWMutex
	traces map[string]*contracts.DecisionTrace
	order  []string // append-only insertion order, for time-range scans
	clock  func() time.Time
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{traces: make(map[string]*contracts.DecisionTrace), clock: time.Now}
}

func (m *MemStore) Create(ctx context.Context, trace contracts.DecisionTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.traces[trace.DecisionID]; exists {
		return errAlreadyExists(trace.DecisionID)
	}
	cp := trace
	m.traces[trace.DecisionID] = &cp
	m.order = append(m.order, trace.DecisionID)
	return nil
}

func (m *MemStore) Get(ctx context.Context, id string) (contracts.DecisionTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.traces[id]
	if !ok {
		return contracts.DecisionTrace{}, errUnknown(id)
	}
	return *t, nil
}

func (m *MemStore) FinalizeOutcome(ctx context.Context, id string, outcome contracts.Outcome, rewardValue float64, poisoned bool) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.traces[id]
	if !ok {
		return 0, false, errUnknown(id)
	}
	if t.Finalized {
		if t.Reward != nil {
			return *t.Reward, false, nil
		}
		return 0, false, nil
	}

	t.Outcome = &outcome
	r := rewardValue
	t.Reward = &r
	t.Finalized = true
	t.Poisoned = poisoned
	return rewardValue, true, nil
}

func (m *MemStore) MarkAbandoned(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.traces[id]
	if !ok {
		return errUnknown(id)
	}
	t.Abandoned = true
	return nil
}

func (m *MemStore) ScanByTimeRange(ctx context.Context, from, to time.Time) ([]contracts.DecisionTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.DecisionTrace
	for _, id := range m.order {
		t := m.traces[id]
		if !t.Timestamp.Before(from) && t.Timestamp.Before(to) {
			out = append(out, *t)
		}
	}
	sortTraces(out)
	return out, nil
}

func (m *MemStore) ScanByTenant(ctx context.Context, tenant string) ([]contracts.DecisionTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.DecisionTrace
	for _, id := range m.order {
		t := m.traces[id]
		if t.Tenant == tenant {
			out = append(out, *t)
		}
	}
	sortTraces(out)
	return out, nil
}

func (m *MemStore) Retention(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	kept := m.order[:0:0]
	for _, id := range m.order {
		t := m.traces[id]
		if t.Finalized && t.Timestamp.Before(before) {
			delete(m.traces, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed, nil
}

func sortTraces(traces []contracts.DecisionTrace) {
	sort.Slice(traces, func(i, j int) bool {
		if traces[i].Timestamp.Equal(traces[j].Timestamp) {
			return traces[i].DecisionID < traces[j].DecisionID
		}
		return traces[i].Timestamp.Before(traces[j].Timestamp)
	})
}
