// Package commitlog implements the durable write-ahead record of admitted
// writes (spec.md §4.5 step 5, SPEC_FULL.md D3): one bbolt bucket per
// shard key, appended to after the shard-index write and before the write
// coordinator replies to the caller. Disabled entirely when commit-log.enabled=false,
// in which case the coordinator is expected to use the Noop
// implementation so call sites never branch on whether logging is on.
package commitlog

import (
	"encoding/binary"
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/scalar"
)

// Entry is one appended commit-log record: the metric it belongs to (a
// shard key spans exactly one metric's bin) and the record itself.
type Entry struct {
	Seq    uint64
	Metric string
	Record scalar.Record
}

// Log is the durable append/replay/truncate interface the write
// coordinator depends on. Both *Store and Noop satisfy it, so
// commit-log.enabled is a pure wiring decision at startup.
type Log interface {
	Append(shardKey string, metric string, rec scalar.Record) (uint64, error)
	Replay(shardKey string, fn func(Entry) error) error
	Truncate(shardKey string, upToSeq uint64) error
	Close() error
}

// Store is the bbolt-backed Log implementation.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the commit log database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &errs.IoError{Op: "commitlog.Open", Err: err}
	}
	return &Store{db: db}, nil
}

// Append writes rec to shardKey's bucket under a fresh monotonically
// increasing sequence number, creating the bucket on first use.
func (s *Store) Append(shardKey string, metric string, rec scalar.Record) (uint64, error) {
	entry := Entry{Metric: metric, Record: rec}
	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(shardKey))
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		entry.Seq = seq
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), payload)
	})
	if err != nil {
		return 0, &errs.IoError{Op: "commitlog.Append", Err: err}
	}
	return seq, nil
}

// Replay invokes fn once per entry in shardKey's bucket, in ascending
// sequence order.
func (s *Store) Replay(shardKey string, fn func(Entry) error) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(shardKey))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			return fn(entry)
		})
	})
	if err != nil {
		return &errs.IoError{Op: "commitlog.Replay", Err: err}
	}
	return nil
}

// Truncate removes every entry with sequence <= upToSeq.
func (s *Store) Truncate(shardKey string, upToSeq uint64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(shardKey))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if binary.BigEndian.Uint64(k) > upToSeq {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &errs.IoError{Op: "commitlog.Truncate", Err: err}
	}
	return nil
}

// Close releases the underlying bbolt handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return &errs.IoError{Op: "commitlog.Close", Err: err}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// Noop is the Log used when commit-log.enabled=false: every call
// succeeds without doing anything.
type Noop struct{}

func (Noop) Append(string, string, scalar.Record) (uint64, error) { return 0, nil }
func (Noop) Replay(string, func(Entry) error) error               { return nil }
func (Noop) Truncate(string, uint64) error                        { return nil }
func (Noop) Close() error                                         { return nil }
