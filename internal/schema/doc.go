// Package schema implements the schema registry (component C2): the
// per-metric field typing authority that the write coordinator consults
// before admitting a record and the read coordinator consults before
// planning a query.
//
// # Compatibility rule
//
// Update(metric, proposed) accepts proposed only if every field shared
// with the existing schema has an unchanged indexType; the effective
// schema is then the union of both field sets. This makes schema
// evolution monotone: a successful Update never removes a field or
// changes an existing field's type, only adds fields (spec.md §8
// "Schema monotone additivity").
//
// # Persistence
//
// The authoritative copy lives in a bleve index (store.go), one document
// per metric keyed by "_metric". The in-memory registry (registry.go) is
// rebuilt from a full scan of that index on construction and thereafter
// kept current via copy-on-write snapshot swaps, so concurrent Get calls
// never block on a mutation in flight.
package schema
