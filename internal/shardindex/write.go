package shardindex

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
)

// WriterToken is the capability returned by AcquireWriter (spec.md §5:
// "write and delete operations require a writer token ... acquisition
// returns an object that guarantees release on every exit path"). Callers
// must defer Release(); a token used after release is a programmer error.
type WriterToken struct {
	s        *ShardIndex
	released int32
}

// Release returns the writer token. Safe to call more than once; only the
// first call has any effect, so a defer alongside an early explicit
// release on a successful path never double-unlocks.
func (t *WriterToken) Release() {
	if atomic.CompareAndSwapInt32(&t.released, 0, 1) {
		t.s.writerMu.Unlock()
	}
}

// AcquireWriter blocks until the shard's single writer slot is free and
// returns a token guarding it. The scoped-writer contract (spec.md §5)
// means at most one write-side operation runs against a shard at a time;
// readers are unaffected.
func (s *ShardIndex) AcquireWriter() *WriterToken {
	s.writerMu.Lock()
	return &WriterToken{s: s}
}

// Write implements spec.md §4.3 write(schema, record): indexes one
// record, keyed by a content-derived document ID so repeated delivery of
// the same (timestamp, dimensions, tags) is idempotent rather than
// duplicating documents, matching the at-least-once delivery spec.md §5
// assumes of the commit log replay path.
func (s *ShardIndex) Write(token *WriterToken, sch schema.Schema, rec scalar.Record) error {
	if token == nil || token.s != s {
		return &errs.InvalidStatement{Detail: "shardindex.Write called without this shard's writer token"}
	}
	if s.State() == StateDeleted {
		return &errs.InvalidStatement{Detail: "shardindex.Write against a deleted shard"}
	}
	doc, err := toDocument(sch, rec)
	if err != nil {
		return err
	}
	id := documentID(sch.Metric, rec)
	if err := s.idx.Index(id, doc); err != nil {
		return &errs.IoError{Op: "shardindex.Write", Err: err}
	}
	atomic.AddUint64(&s.stats.Writes, 1)
	return nil
}

// DeleteByTimestamp implements spec.md §4.3 deleteByTimestamp(ts): removes
// every document whose timestamp field equals ts.
func (s *ShardIndex) DeleteByTimestamp(token *WriterToken, sch schema.Schema, ts int64) error {
	return s.DeleteByQuery(token, sch, predicate.Comparison{
		Field: "timestamp", Op: predicate.Eq, Value: scalar.BigInt(ts),
	})
}

// DeleteByQuery implements spec.md §4.3 deleteByQuery(predicate): removes
// every document the translated predicate matches. Matching and deletion
// run under the same writer token so no write interleaves between the
// match scan and the deletes.
func (s *ShardIndex) DeleteByQuery(token *WriterToken, sch schema.Schema, pred predicate.Predicate) error {
	if token == nil || token.s != s {
		return &errs.InvalidStatement{Detail: "shardindex.DeleteByQuery called without this shard's writer token"}
	}

	req := bleve.NewSearchRequest(translate(sch, pred))
	req.Fields = nil
	req.Size = maxSearchSize

	res, err := s.idx.Search(req)
	if err != nil {
		return &errs.IoError{Op: "shardindex.DeleteByQuery.search", Err: err}
	}

	batch := s.idx.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := s.idx.Batch(batch); err != nil {
		return &errs.IoError{Op: "shardindex.DeleteByQuery.batch", Err: err}
	}
	atomic.AddUint64(&s.stats.Deletes, uint64(batch.Size()))
	return nil
}

// documentID derives a stable, content-addressed bleve document ID so
// re-indexing the same logical record overwrites rather than duplicates
// it. The hash covers the metric, timestamp and every dimension/tag
// value; two records differing only in the measured value collide by
// design, matching the "one value per (metric, timestamp, dimension set)"
// shape spec.md §2 records assume.
func documentID(metric string, rec scalar.Record) string {
	h := sha1.New()
	h.Write([]byte(metric))
	writeInt(h, rec.Timestamp)
	for _, name := range sortedKeys(rec.Dimensions) {
		h.Write([]byte(name))
		h.Write([]byte(rec.Dimensions[name].String()))
	}
	for _, name := range sortedKeys(rec.Tags) {
		h.Write([]byte(name))
		h.Write([]byte(rec.Tags[name].String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h interface{ Write([]byte) (int, error) }, n int64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * uint(i)))
	}
	h.Write(buf[:])
}

func sortedKeys(m map[string]scalar.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
