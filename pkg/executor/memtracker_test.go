package executor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemTracker_PutThenGet(t *testing.T) {
	tr := NewMemTracker()
	rec := Record{DecisionID: "dec-1", ProviderID: "p1", Outcome: OutcomeSuccess}
	tr.Put(rec)

	got, ok := tr.Get("dec-1")
	assert.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestMemTracker_MissingIsNotOK(t *testing.T) {
	tr := NewMemTracker()
	_, ok := tr.Get("does-not-exist")
	assert.False(t, ok)
}

func TestMemTracker_ConcurrentAccessIsSafe(t *testing.T) {
	tr := NewMemTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Put(Record{DecisionID: "dec", ProviderID: "p"})
			tr.Get("dec")
		}(i)
	}
	wg.Wait()
}
