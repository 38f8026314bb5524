// Package conflict resolves competing anchors for the same federation
// record id per §4.11: anchor-class priority, then earliest timestamp,
// then lowest reference — a deterministic, total order. Grounded on the
// teacher's rollback-prevention idiom in
// pkg/trust/conflict_resolution_test.go (strict, fail-closed ordering
// over a monotonic version), generalized here from semver-only ordering
// to the full anchor-class/timestamp/reference chain.
package conflict

import (
	"sort"
	"strings"
	"time"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// timeLayouts is the permissive set of formats tried when parsing an
// anchor's timestamp. A timestamp that matches none of these is treated
// as missing (§4.11: "a missing/invalid timestamp sorts to the end").
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses s permissively, returning (t, true) on success.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Resolve orders anchors, all referencing the same record id, by §4.11's
// total order and returns the unique winner plus every loser marked
// Superseded. Resolve panics if anchors is empty — callers only invoke it
// when a collision has already been detected.
func Resolve(anchors []contracts.Anchor) (winner contracts.Anchor, losers []contracts.Anchor) {
	if len(anchors) == 0 {
		panic("conflict: Resolve called with no anchors")
	}

	ordered := make([]contracts.Anchor, len(anchors))
	copy(ordered, anchors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})

	winner = ordered[0]
	for _, a := range ordered[1:] {
		a.Superseded = true
		losers = append(losers, a)
	}
	return winner, losers
}

// less reports whether a sorts strictly before b under the §4.11 chain:
// anchor-class priority, then earliest timestamp (invalid/missing last),
// then lowest lowercased reference.
func less(a, b contracts.Anchor) bool {
	if a.Class != b.Class {
		return a.Class < b.Class // lower index = stronger, per AnchorClass
	}

	at, aok := parseTimestamp(a.Timestamp)
	bt, bok := parseTimestamp(b.Timestamp)
	switch {
	case aok && !bok:
		return true
	case !aok && bok:
		return false
	case aok && bok && !at.Equal(bt):
		return at.Before(bt)
	}

	return strings.ToLower(a.Reference) < strings.ToLower(b.Reference)
}
