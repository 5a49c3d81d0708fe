package schema

import (
	"sync"
	"sync/atomic"

	"github.com/dreamware/nsdb/internal/errs"
)

// snapshot is the immutable map the registry swaps in on every mutation.
// Readers load the current snapshot without ever blocking on the writer
// (spec.md §4.2 "copy-on-write map replacement", §5 "reads served from an
// immutable snapshot pointer swapped on update").
type snapshot map[string]Schema

// Registry is the per-(db,namespace) schema registry (component C2). It is
// single-writer: only the write coordinator calls Update/Delete/DeleteAll;
// any number of readers may call Get concurrently and always observe a
// consistent point-in-time snapshot.
type Registry struct {
	store *Store

	// writeMu serialises mutating calls; it is not held during reads.
	writeMu sync.Mutex

	current atomic.Pointer[snapshot]
}

// NewRegistry constructs a Registry backed by store, performing the
// startup full-scan rebuild described in spec.md §4.2.
func NewRegistry(store *Store) (*Registry, error) {
	all, err := store.ScanAll()
	if err != nil {
		return nil, err
	}
	snap := make(snapshot, len(all))
	for _, sch := range all {
		snap[sch.Metric] = sch
	}
	r := &Registry{store: store}
	r.current.Store(&snap)
	return r, nil
}

// Get returns the current schema for metric, if any.
func (r *Registry) Get(metric string) (Schema, bool) {
	snap := *r.current.Load()
	sch, ok := snap[metric]
	return sch, ok
}

// Update implements spec.md §4.2's update(metric, proposed): applies the
// compatibility rule against the existing schema (or adopts proposed
// verbatim if the metric is new), persists the effective schema, and
// publishes a new snapshot atomically.
func (r *Registry) Update(metric string, proposed Schema) (Schema, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old, existed := r.Get(metric)
	effective := proposed
	if existed {
		merged, err := old.Compatible(proposed)
		if err != nil {
			return Schema{}, err
		}
		effective = merged
	}
	if err := r.store.Put(effective); err != nil {
		return Schema{}, err
	}
	r.publish(func(snap snapshot) { snap[metric] = effective })
	return effective, nil
}

// Delete drops the schema for metric (spec.md §4.2 delete).
func (r *Registry) Delete(metric string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, ok := r.Get(metric); !ok {
		return &errs.MetricNotFound{Metric: metric}
	}
	if err := r.store.Delete(metric); err != nil {
		return err
	}
	r.publish(func(snap snapshot) { delete(snap, metric) })
	return nil
}

// DeleteAll drops every schema (spec.md §4.2 deleteAll), used when an
// entire namespace is torn down.
func (r *Registry) DeleteAll() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.DeleteAll(); err != nil {
		return err
	}
	empty := snapshot{}
	r.current.Store(&empty)
	return nil
}

// publish copies the current snapshot, applies mutate, and swaps the
// pointer — the copy-on-write discipline spec.md §4.2/§5 require so
// concurrent readers never observe a partially-updated map.
func (r *Registry) publish(mutate func(snapshot)) {
	old := *r.current.Load()
	next := make(snapshot, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	mutate(next)
	r.current.Store(&next)
}
