// Package metadata implements the location/metric-info authority
// (component C4). It answers three questions for the write and read
// coordinators:
//
//   - which bin does this timestamp belong to, and who owns it (Locate)?
//   - which bins overlap this query's time range (LocationsOverlapping)?
//   - what is this metric's shard interval (ShardInterval)?
//
// Placement is a pure function of (metric, bin_index, sorted member set):
// any node can compute the same answer independently, so location
// creation never requires coordination beyond agreeing on membership
// (spec.md §4.4, §8 "Placement determinism"). The authoritative store is
// a small per-node bbolt database; the in-memory Registry is the fast
// path, converged across nodes by a Publisher (internal/cluster's gossip
// broadcast) rather than direct actor references.
package metadata
