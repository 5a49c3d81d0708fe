// Package shardcache owns the set of open shard indices for one node,
// keyed by (metric, bin_index), so the write and read coordinators share
// exactly one ShardIndex instance per Location rather than racing to open
// the same bleve path twice (spec.md §3 "Ownership & lifecycle": a shard
// index is opened on demand and cached by the guardian).
package shardcache

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/shardindex"
)

// Cache lazily opens and memoises ShardIndex instances under baseDir. An
// empty baseDir means in-memory indices only, used by tests.
type Cache struct {
	baseDir string

	mu   sync.Mutex
	open map[string]*shardindex.ShardIndex
}

// New creates a shard cache rooted at baseDir. baseDir="" opens every
// shard in memory.
func New(baseDir string) *Cache {
	return &Cache{baseDir: baseDir, open: make(map[string]*shardindex.ShardIndex)}
}

// Key derives the shard cache key for one Location.
func Key(metric string, binIndex int64) string {
	return fmt.Sprintf("%s/%020d", metric, binIndex)
}

// Get returns the ShardIndex for (metric, binIndex), opening it on first
// access.
func (c *Cache) Get(metric string, binIndex int64) (*shardindex.ShardIndex, error) {
	key := Key(metric, binIndex)

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.open[key]; ok {
		return idx, nil
	}

	var idx *shardindex.ShardIndex
	var err error
	if c.baseDir == "" {
		idx, err = shardindex.OpenInMemory()
	} else {
		idx, err = shardindex.Open(filepath.Join(c.baseDir, key))
	}
	if err != nil {
		return nil, err
	}
	c.open[key] = idx
	return idx, nil
}

// DropMetric closes and discards every cached shard belonging to metric.
// The on-disk bleve directories are left behind for out-of-band garbage
// collection; spec.md's idempotent-drop invariant only requires that the
// metric's schema and in-memory placement be gone, not that bytes be
// reclaimed synchronously.
func (c *Cache) DropMetric(metric string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := metric + "/"
	var firstErr error
	for key, idx := range c.open {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = &errs.IoError{Op: "shardcache.DropMetric", Err: err}
		}
		delete(c.open, key)
	}
	return firstErr
}

// Close closes every open shard index.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key, idx := range c.open {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = &errs.IoError{Op: "shardcache.Close", Err: err}
		}
		delete(c.open, key)
	}
	return firstErr
}
