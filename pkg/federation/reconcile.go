package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/lattice-compute/routectl/pkg/conflict"
	"github.com/lattice-compute/routectl/pkg/contracts"
	"github.com/lattice-compute/routectl/pkg/merge"
)

// Reconcile pulls a peer's entire visible record log (every page, every
// id) and computes the deterministic union against local per §4.10,
// rather than SyncPeer's continuous missing-id catch-up. Use it for
// periodic full reconciliation, where a stable merge receipt documenting
// both input roots and the merged root is the point, not incremental
// throughput.
func Reconcile(ctx context.Context, local []contracts.FederationRecord, peer Peer, now time.Time) (merge.Result, error) {
	var remote []contracts.FederationRecord

	cursor := ""
	for {
		ids, next, err := peer.ListIDs(ctx, cursor)
		if err != nil {
			return merge.Result{}, fmt.Errorf("federation: list peer ids: %w", err)
		}
		for _, id := range ids {
			rec, err := peer.FetchRecord(ctx, id)
			if err != nil {
				return merge.Result{}, fmt.Errorf("federation: fetch record %s: %w", id, err)
			}
			fr, ok := rec.(contracts.FederationRecord)
			if !ok {
				return merge.Result{}, fmt.Errorf("federation: record %s is not a contracts.FederationRecord", id)
			}
			remote = append(remote, fr)
		}
		if next == "" {
			break
		}
		cursor = next

		select {
		case <-ctx.Done():
			return merge.Result{}, ctx.Err()
		default:
		}
	}

	return merge.Merge(local, remote, now)
}

// ResolveAnchors groups anchors by record id and resolves each collision
// with pkg/conflict's deterministic total order (§4.11). A group of size
// one resolves trivially to its sole member. The returned map holds the
// winning anchor per record id; losers are available from conflict.Resolve
// directly for callers that need to record supersession.
func ResolveAnchors(anchors []contracts.Anchor) map[string]contracts.Anchor {
	byRecord := make(map[string][]contracts.Anchor, len(anchors))
	for _, a := range anchors {
		byRecord[a.RecordID] = append(byRecord[a.RecordID], a)
	}

	winners := make(map[string]contracts.Anchor, len(byRecord))
	for id, group := range byRecord {
		winner, _ := conflict.Resolve(group)
		winners[id] = winner
	}
	return winners
}
