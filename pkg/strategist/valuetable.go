package strategist

import (
	"hash/fnv"
	"sync"
)

// shardCount is the number of lock stripes the value table is split across.
// A state key's shard is a pure function of its hash, so two different
// goroutines updating different (state, action) pairs rarely contend.
const shardCount = 64

// valueTable is the sparse double-indexed map (state-key -> provider-id ->
// scalar) described by §3. The zero value for an unseen (state, action)
// pair is exactly zero and is never materialized by a read — Get returns a
// plain float64, not a pointer into the map, so readers can never observe a
// torn write.
type valueTable struct {
	shards [shardCount]*shard
}

type shard struct {
	mu   sync.RWMutex
	rows map[string]map[string]float64
}

func newValueTable() *valueTable {
	vt := &valueTable{}
	for i := range vt.shards {
		vt.shards[i] = &shard{rows: make(map[string]map[string]float64)}
	}
	return vt
}

func (vt *valueTable) shardFor(state string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(state))
	return vt.shards[h.Sum32()%shardCount]
}

// get returns the stored value for (state, action), or 0 if unseen. It
// never mutates the table, so it is a safe concurrent snapshot read.
func (vt *valueTable) get(state, action string) float64 {
	s := vt.shardFor(state)
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[state]
	if !ok {
		return 0
	}
	return row[action]
}

// maxOver returns the maximum value over the given candidate actions for a
// state, or 0 if candidates is empty (terminal semantics per §4.2 Update).
func (vt *valueTable) maxOver(state string, actions []string) float64 {
	if len(actions) == 0 {
		return 0
	}
	s := vt.shardFor(state)
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.rows[state]
	best := row[actions[0]] // zero if row is nil or action unseen
	for _, a := range actions[1:] {
		if v := row[a]; v > best {
			best = v
		}
	}
	return best
}

// set performs an atomic read-modify-write on (state, action) via fn, which
// receives the current value (0 if unseen) and returns the new value. Two
// concurrent set calls on the same (state, action) observe the sequentially
// consistent result of one ordering, because both acquire the same shard's
// write lock.
func (vt *valueTable) set(state, action string, fn func(old float64) float64) float64 {
	s := vt.shardFor(state)
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[state]
	if !ok {
		row = make(map[string]float64)
		s.rows[state] = row
	}
	newVal := fn(row[action])
	row[action] = newVal
	return newVal
}

// snapshot returns a deep copy of the sparse map, suitable for JSON
// serialization (content-addressed snapshots, §4.2 Persistence).
func (vt *valueTable) snapshot() map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, s := range vt.shards {
		s.mu.RLock()
		for state, row := range s.rows {
			cp := make(map[string]float64, len(row))
			for action, v := range row {
				cp[action] = v
			}
			out[state] = cp
		}
		s.mu.RUnlock()
	}
	return out
}

// restore replaces the table's contents with a previously-snapshotted map.
// It is used only at load time, before the table is shared with readers.
func (vt *valueTable) restore(data map[string]map[string]float64) {
	for state, row := range data {
		s := vt.shardFor(state)
		s.mu.Lock()
		cp := make(map[string]float64, len(row))
		for action, v := range row {
			cp[action] = v
		}
		s.rows[state] = cp
		s.mu.Unlock()
	}
}

// size returns the total number of (state, action) entries, used by the
// router's status() aggregation.
func (vt *valueTable) size() int {
	n := 0
	for _, s := range vt.shards {
		s.mu.RLock()
		for _, row := range s.rows {
			n += len(row)
		}
		s.mu.RUnlock()
	}
	return n
}
