package metadata

import (
	"sync"

	"github.com/dreamware/nsdb/internal/errs"
)

// Publisher broadcasts a metadata event to every other node so their local
// caches converge (spec.md §4.4 "Publication"). internal/cluster provides
// the gossip-backed implementation; tests use a no-op stub.
type Publisher interface {
	PublishLocation(Location)
	PublishMetricInfo(MetricInfo)
}

// noopPublisher is used when a Registry is constructed without a real
// cluster (single-node tests, unit tests of the metadata package itself).
type noopPublisher struct{}

func (noopPublisher) PublishLocation(Location)     {}
func (noopPublisher) PublishMetricInfo(MetricInfo) {}

// Registry is the per-(db,namespace) metadata authority (component C4):
// shard intervals, locations, and deterministic placement.
type Registry struct {
	store     *Store
	publisher Publisher
	members   func() []string
	ring      Ring

	mu         sync.RWMutex
	intervals  map[string]MetricInfo         // metric -> info
	locations  map[string]map[int64]Location // metric -> binIndex -> Location
}

// NewRegistry constructs a Registry backed by store, rebuilding its
// in-memory state from the store's persisted contents. membersFn returns
// the current cluster's sorted node identifiers (spec.md §4.4 placement);
// pub may be nil, in which case publication is a no-op (useful for
// single-node deployments and tests).
func NewRegistry(store *Store, membersFn func() []string, pub Publisher) (*Registry, error) {
	if pub == nil {
		pub = noopPublisher{}
	}
	r := &Registry{
		store:     store,
		publisher: pub,
		members:   membersFn,
		intervals: map[string]MetricInfo{},
		locations: map[string]map[int64]Location{},
	}
	infos, err := store.LoadMetricInfo()
	if err != nil {
		return nil, err
	}
	for _, mi := range infos {
		r.intervals[mi.Metric] = mi
	}
	locs, err := store.LoadLocations()
	if err != nil {
		return nil, err
	}
	for _, loc := range locs {
		r.indexLocation(loc)
	}
	return r, nil
}

func (r *Registry) indexLocation(loc Location) {
	m, ok := r.locations[loc.Metric]
	if !ok {
		m = map[int64]Location{}
		r.locations[loc.Metric] = m
	}
	m[loc.BinIndex] = loc
}

// PutMetricInfo sets the shard interval for metric, once. Subsequent calls
// with a different interval are rejected: shard boundaries are frozen
// after the first write (spec.md §3).
func (r *Registry) PutMetricInfo(metric string, intervalMillis int64) (MetricInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.intervals[metric]; ok {
		if existing.ShardIntervalMillis != intervalMillis {
			return MetricInfo{}, &errs.InvalidStatement{
				Detail: "shard interval for metric " + metric + " is frozen",
			}
		}
		return existing, nil
	}
	mi := MetricInfo{Metric: metric, ShardIntervalMillis: intervalMillis}
	if err := r.store.PutMetricInfo(mi); err != nil {
		return MetricInfo{}, err
	}
	r.intervals[metric] = mi
	r.publisher.PublishMetricInfo(mi)
	return mi, nil
}

// ShardInterval returns the configured interval for metric, if any.
func (r *Registry) ShardInterval(metric string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mi, ok := r.intervals[metric]
	return mi.ShardIntervalMillis, ok
}

// Locate returns the Location whose bin contains ts, creating it (and
// placing it deterministically) if absent (spec.md §4.4 locate).
// defaultInterval is used if the metric has no MetricInfo yet (the
// "sharding.interval" configuration default of spec.md §6).
func (r *Registry) Locate(metric string, ts int64, defaultInterval int64) (Location, error) {
	interval, ok := r.ShardInterval(metric)
	if !ok {
		mi, err := r.PutMetricInfo(metric, defaultInterval)
		if err != nil {
			return Location{}, err
		}
		interval = mi.ShardIntervalMillis
	}
	bin := BinIndex(ts, interval)

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.locations[metric]; ok {
		if loc, ok := m[bin]; ok {
			return loc, nil
		}
	}
	lower, upper := BinBounds(bin, interval)
	loc := Location{
		Metric:   metric,
		LowerTS:  lower,
		UpperTS:  upper,
		BinIndex: bin,
		NodeID:   r.ring.Select(metricBinKey(metric, bin), SortedMembers(r.members())),
	}
	if err := r.store.PutLocation(loc); err != nil {
		return Location{}, err
	}
	r.indexLocation(loc)
	r.publisher.PublishLocation(loc)
	return loc, nil
}

func metricBinKey(metric string, bin int64) string {
	return Location{Metric: metric, BinIndex: bin}.Key()
}

// LocationsOverlapping returns the Locations of metric whose interval
// intersects the inclusive range [lo, hi] (spec.md §4.4).
func (r *Registry) LocationsOverlapping(metric string, lo, hi int64) []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Location
	for _, loc := range r.locations[metric] {
		if loc.Overlaps(lo, hi) {
			out = append(out, loc)
		}
	}
	return out
}

// LocationsFor returns every Location of metric.
func (r *Registry) LocationsFor(metric string) []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Location, 0, len(r.locations[metric]))
	for _, loc := range r.locations[metric] {
		out = append(out, loc)
	}
	return out
}

// ApplyRemoteLocation merges a Location received over the metadata
// pub/sub topic into the local cache. Conflicts (same key, different
// node_id) resolve by minimum node_id, lexicographically, as spec.md §4.4
// prescribes — the creation is a pure function of key and membership at
// creation time, so this only ever arbitrates races, never authoritative
// disagreement.
func (r *Registry) ApplyRemoteLocation(loc Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locations[loc.Metric]
	if !ok {
		m = map[int64]Location{}
		r.locations[loc.Metric] = m
	}
	if existing, ok := m[loc.BinIndex]; ok && existing.NodeID <= loc.NodeID {
		return
	}
	m[loc.BinIndex] = loc
	_ = r.store.PutLocation(loc)
}

// ApplyRemoteMetricInfo merges a MetricInfo received over the metadata
// pub/sub topic, ignoring it if a (frozen) local value already disagrees.
func (r *Registry) ApplyRemoteMetricInfo(mi MetricInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.intervals[mi.Metric]; ok {
		return
	}
	r.intervals[mi.Metric] = mi
	_ = r.store.PutMetricInfo(mi)
}
