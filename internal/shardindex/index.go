// Package shardindex implements the structured record index (spec.md
// §4.3, component C3): one instance per Location, backed by a
// github.com/blevesearch/bleve/v2 index — the "lower-level inverted-index
// library" spec.md §1 assumes is available, with per-shard scoped
// writers/readers and merge-on-delete.
//
// See doc.go for the package overview.
package shardindex

import (
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dreamware/nsdb/internal/errs"
)

// State mirrors the operational lifecycle of a shard: Active, Migrating or
// Deleted. Only Write consults it, rejecting writes to a Deleted shard;
// queries and deletes run in every state.
type State string

const (
	StateActive    State = "active"
	StateMigrating State = "migrating"
	StateDeleted   State = "deleted"
)

// OperationStats are monotonically increasing, lock-free operation
// counters, used for observability (spec.md §7 "partial failures ...
// observable via metrics").
type OperationStats struct {
	Writes         uint64
	Deletes        uint64
	Queries        uint64
	ReconstructErr uint64
}

// ShardIndex is one Location's structured record index.
type ShardIndex struct {
	// writerMu enforces "at most one in-flight writer per shard index
	// instance" (spec.md §5); readers never take it.
	writerMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	idx   bleve.Index
	stats OperationStats
}

// Open opens (or creates) the bleve index at path for a newly located
// shard bin.
func Open(path string) (*ShardIndex, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &ShardIndex{idx: idx, state: StateActive}, nil
	}
	m := buildMapping()
	idx, err = bleve.New(path, m)
	if err != nil {
		return nil, &errs.IoError{Op: "shardindex.Open", Err: err}
	}
	return &ShardIndex{idx: idx, state: StateActive}, nil
}

// OpenInMemory opens an ephemeral shard index, used by tests.
func OpenInMemory() (*ShardIndex, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, &errs.IoError{Op: "shardindex.OpenInMemory", Err: err}
	}
	return &ShardIndex{idx: idx, state: StateActive}, nil
}

// buildMapping returns the dynamic index mapping used by every shard
// index: numeric Go values map to bleve's numeric field type (point-range
// queryable, stored) and string values map to bleve's text field type
// (keyword-analysed, stored) — exactly the two index-field shapes spec.md
// §4.1 requires per scalar kind, produced by bleve's built-in dynamic
// type detection rather than a hand-rolled per-kind mapping table.
//
// The keyword analyzer indexes a VARCHAR field as a single untokenised
// term rather than the standard analyzer's lowercased word stream:
// dimension/tag values are exact categorical strings (city names, surnames),
// not prose, and both equality comparisons and the group-by facet terms
// GroupedAggregation reconstructs as group keys must preserve the value's
// original case and full content.
func buildMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "keyword"
	return m
}

// State returns the shard's current lifecycle state.
func (s *ShardIndex) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// SetState transitions the shard's lifecycle state.
func (s *ShardIndex) SetState(state State) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

// Stats returns a snapshot of the shard's operation counters.
func (s *ShardIndex) Stats() OperationStats {
	return OperationStats{
		Writes:         atomic.LoadUint64(&s.stats.Writes),
		Deletes:        atomic.LoadUint64(&s.stats.Deletes),
		Queries:        atomic.LoadUint64(&s.stats.Queries),
		ReconstructErr: atomic.LoadUint64(&s.stats.ReconstructErr),
	}
}

// Count returns the number of documents currently in the shard index
// (spec.md §4.3 count()).
func (s *ShardIndex) Count() (int64, error) {
	n, err := s.idx.DocCount()
	if err != nil {
		return 0, &errs.IoError{Op: "shardindex.Count", Err: err}
	}
	return int64(n), nil
}

// Close releases the underlying index handle. Shard indices are opened on
// demand and cached by the guardian; Close is called on metric drop or
// when the cache itself is closed (spec.md §3 "Ownership & lifecycle").
func (s *ShardIndex) Close() error {
	if err := s.idx.Close(); err != nil {
		return &errs.IoError{Op: "shardindex.Close", Err: err}
	}
	return nil
}
