// Package federation synchronizes records from configured peers per §4.9:
// paged id fetch, missing-set diff, per-id validate+insert over a bounded
// worker pool, with failures counted (never aborting the batch). Backoff
// computes an exponential delay schedule; SyncPeer does not retry a failed
// id within a call and does not call Backoff. Grounded on the teacher's
// pkg/trust/pack_loader.go sequential verification flow — adapted here
// from an 8-step artifact-trust pipeline into a single per-record
// validate-then-insert step — and pkg/registry/registry.go's
// thread-safe in-memory map idiom for the local record store.
package federation

import (
	"context"
	"sync"
	"time"
)

// Record is the minimal shape federation syncs over; callers bind this to
// contracts.FederationRecord in practice. Kept generic here so the sync
// loop and worker pool have no import-time dependency on the contracts
// package's eventual schema changes.
type Record interface {
	RecordID() string
}

// Peer is a federation counterpart this process can pull records from.
type Peer interface {
	// ListIDs returns one page of remote ids starting at cursor ("" for
	// the first page), and the cursor for the next page ("" when done).
	ListIDs(ctx context.Context, cursor string) (ids []string, nextCursor string, err error)

	// FetchRecord retrieves the full record for id.
	FetchRecord(ctx context.Context, id string) (Record, error)
}

// Store is the local record index federation sync writes into.
type Store interface {
	Has(id string) bool
	Insert(ctx context.Context, record Record) error
}

// Validator runs the §4.11 pre-checks before a fetched record is
// inserted. Returning an error rejects the record; the id's failure is
// counted and sync continues with the next id.
type Validator func(ctx context.Context, record Record) error

// Stats summarizes one SyncPeer call.
type Stats struct {
	RemoteSeen int
	Missing    int
	Inserted   int
	Failed     int
	FailedIDs  []string
}

// Syncer runs paged peer reconciliation with a bounded worker pool.
type Syncer struct {
	Store     Store
	Validator Validator
	// Concurrency bounds how many ids are fetched+validated+inserted at
	// once. Defaults to 8 if zero.
	Concurrency int
}

// SyncPeer reconciles against one peer. It is idempotent: replaying the
// same peer view after a full catch-up performs zero inserts, since every
// remote id is already present in Store. Concurrent SyncPeer calls across
// different peers are safe — insertion is keyed by id with last-writer
// semantics resolved upstream by pkg/conflict, not by this package.
func (s *Syncer) SyncPeer(ctx context.Context, peer Peer) (Stats, error) {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	var stats Stats
	var missing []string

	cursor := ""
	for {
		ids, next, err := peer.ListIDs(ctx, cursor)
		if err != nil {
			return stats, err
		}
		stats.RemoteSeen += len(ids)
		for _, id := range ids {
			if !s.Store.Has(id) {
				missing = append(missing, id)
			}
		}
		if next == "" {
			break
		}
		cursor = next

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}
	}
	stats.Missing = len(missing)

	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, id := range missing {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			ok := s.syncOne(ctx, peer, id)

			mu.Lock()
			if ok {
				stats.Inserted++
			} else {
				stats.Failed++
				stats.FailedIDs = append(stats.FailedIDs, id)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return stats, nil
}

func (s *Syncer) syncOne(ctx context.Context, peer Peer, id string) bool {
	record, err := peer.FetchRecord(ctx, id)
	if err != nil {
		return false
	}
	if s.Validator != nil {
		if err := s.Validator(ctx, record); err != nil {
			return false
		}
	}
	if s.Store.Has(id) {
		return true // another goroutine (or a concurrent sync) already inserted it
	}
	return s.Store.Insert(ctx, record) == nil
}

// Backoff computes the retry delay for the given attempt count (0-based),
// an exponential schedule capped at max, matching the resiliency idiom
// the teacher's HTTP client uses for transient upstream failures.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
