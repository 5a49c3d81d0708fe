// Package shardindex is the structured record index behind one Location
// (spec.md §4.3). Each ShardIndex wraps a single bleve index instance and
// exposes four kinds of operation:
//
//   - write-side: Write, DeleteByTimestamp, DeleteByQuery, all gated by a
//     WriterToken from AcquireWriter, enforcing the single-writer-per-shard
//     contract of spec.md §5.
//   - read-side: Query, CountQuery, All, GroupedAggregation, which never
//     take the writer lock and may run concurrently with each other.
//   - translation: translate() turns the neutral internal/predicate AST
//     into a bleve query tree, kept in this package so nothing outside it
//     needs to know bleve's query types exist.
//   - documents: toDocument/fromDocument convert between scalar.Record and
//     the flat map bleve indexes, including the raw-string companion
//     fields that make INT/BIGINT/DECIMAL round trip exactly.
package shardindex
