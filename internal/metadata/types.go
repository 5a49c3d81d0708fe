// Package metadata implements shard/location metadata (spec.md §4.4,
// component C4): partitioning a metric's timeline into half-open bins,
// placing each bin deterministically on a node, and tracking per-metric
// retention/interval info.
//
// See doc.go for the package overview.
package metadata

import "fmt"

// Location is one half-open time bin of one metric, placed on one node
// (spec.md §3). Within a (db, namespace, metric), Locations partition the
// timeline into bins of width MetricInfo.ShardIntervalMillis.
type Location struct {
	Metric   string
	NodeID   string
	LowerTS  int64
	UpperTS  int64
	BinIndex int64
}

// Key returns the stable identity of loc for map storage and gossip
// broadcast de-duplication: (metric, bin_index).
func (l Location) Key() string {
	return fmt.Sprintf("%s/%d", l.Metric, l.BinIndex)
}

// Contains reports whether ts falls in l's half-open interval [lower, upper).
func (l Location) Contains(ts int64) bool {
	return ts >= l.LowerTS && ts < l.UpperTS
}

// Overlaps reports whether l's interval intersects the inclusive query
// range [lo, hi].
func (l Location) Overlaps(lo, hi int64) bool {
	return l.LowerTS <= hi && hi >= lo && l.UpperTS > lo
}

// MetricInfo records a metric's shard interval. Mutation is append-only
// per metric: once set, shard boundaries are frozen (spec.md §3).
type MetricInfo struct {
	Metric              string
	ShardIntervalMillis int64
}

// BinIndex computes floor(ts / interval), the bin a timestamp falls into.
func BinIndex(ts, interval int64) int64 {
	if interval <= 0 {
		panic("metadata: shard interval must be positive")
	}
	bin := ts / interval
	if ts < 0 && ts%interval != 0 {
		bin--
	}
	return bin
}

// BinBounds returns the [lower, upper) bounds of the bin at binIndex for
// the given interval.
func BinBounds(binIndex, interval int64) (lower, upper int64) {
	lower = binIndex * interval
	return lower, lower + interval
}
