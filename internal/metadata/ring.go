package metadata

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Ring is the deterministic placement function of spec.md §4.4: "node_id
// of a newly created Location is deterministic: a stable hash of
// (metric, bin_index) selected into the current sorted set of node
// identifiers, so any node can independently compute the owner without
// coordination once the cluster view agrees."
//
// It is intentionally not a consistent-hash ring with virtual nodes: the
// spec asks only that the same key select the same member of a given
// sorted set, which a direct modulo-of-hash selection already guarantees,
// and which any node can recompute from nothing but its local membership
// view.
type Ring struct{}

// Select picks the owning node for key out of members, which must already
// be sorted (callers get this for free from a cluster view's Members()
// call, which returns a deterministically sorted slice — see
// internal/cluster). Select panics on an empty member set: placement is
// undefined with no cluster.
func (Ring) Select(key string, members []string) string {
	if len(members) == 0 {
		panic("metadata: cannot place a location with an empty member set")
	}
	h := xxhash.Sum64String(key)
	idx := h % uint64(len(members))
	return members[idx]
}

// SortedMembers returns members sorted lexicographically, the canonical
// order every node must agree on for Select to be pure.
func SortedMembers(members []string) []string {
	out := make([]string, len(members))
	copy(out, members)
	sort.Strings(out)
	return out
}
