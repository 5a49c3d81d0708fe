// Package read implements the read coordinator (spec.md §4.6, component
// C6): schema resolution, time-range extraction, shard fan-out over a
// bounded worker pool, and the merge semantics of spec.md §4.6.1.
package read

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/rpcutil"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardcache"
	"github.com/dreamware/nsdb/internal/shardindex"
	"github.com/dreamware/nsdb/internal/stmt"
)

// AddressResolver maps a node identifier to its endpoint base URL.
type AddressResolver func(nodeID string) string

// Parallelism bounds the per-statement shard fan-out worker pool, mirroring
// the read.parallelism.{initial,lower,upper} configuration keys.
type Parallelism struct {
	Initial int
	Lower   int
	Upper   int
}

func (p Parallelism) workers(shardCount int) int {
	n := p.Initial
	if n <= 0 {
		n = shardCount
	}
	if p.Lower > 0 && n < p.Lower {
		n = p.Lower
	}
	if p.Upper > 0 && n > p.Upper {
		n = p.Upper
	}
	if n <= 0 {
		n = 1
	}
	if n > shardCount {
		n = shardCount
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// Coordinator is the per-namespace read coordinator.
type Coordinator struct {
	NodeID string

	Schemas     *schema.Registry
	Locations   *metadata.Registry
	Shards      *shardcache.Cache
	Resolve     AddressResolver
	Parallelism Parallelism

	DefaultDeadline time.Duration
	Logger          *logrus.Entry
}

// ExecuteStatement implements spec.md §4.6's plan end to end.
func (c *Coordinator) ExecuteStatement(ctx context.Context, sel stmt.SelectSQLStatement) ([]scalar.Record, error) {
	sch, ok := c.Schemas.Get(sel.Metric)
	if !ok {
		return nil, &errs.MetricNotFound{Metric: sel.Metric}
	}

	if sel.GroupBy != "" {
		if bad := sel.Fields.NonAggregatedNonGroupFields(sel.GroupBy); len(bad) > 0 {
			return nil, &errs.InvalidStatement{Detail: "group-by requires aggregation"}
		}
	}
	for _, f := range sel.Fields.Fields {
		if f.Aggregation != "" && f.Name != "value" {
			return nil, &errs.InvalidStatement{Detail: "aggregations only supported on the value field"}
		}
	}

	cond := sel.Condition
	if cond == nil {
		cond = predicate.MatchAll{}
	}
	lo, hi, _ := predicate.TimeRange(cond, math.MinInt64, math.MaxInt64)
	if hi < lo {
		return nil, nil // negative/reverse range: empty result (spec.md §8 boundary case)
	}

	deadline := sel.Deadline
	if deadline <= 0 {
		deadline = c.DefaultDeadline
	}
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	locs := c.Locations.LocationsOverlapping(sel.Metric, lo, hi)
	if len(locs) == 0 {
		return nil, nil
	}

	if sel.GroupBy != "" {
		return c.executeGrouped(ctx, sch, cond, sel, locs)
	}
	return c.executeFlat(ctx, sch, cond, sel, locs)
}

type shardResult struct {
	records []scalar.Record
	groups  []scalar.Record
	err     error
}

// fanOut runs work once per location on a bounded worker pool, stopping
// early and returning the first error if ctx is cancelled or any shard
// fails (spec.md §4.6 "Cancellation").
func (c *Coordinator) fanOut(ctx context.Context, locs []metadata.Location, work func(ctx context.Context, loc metadata.Location) shardResult) ([]shardResult, error) {
	sem := make(chan struct{}, c.Parallelism.workers(len(locs)))
	results := make([]shardResult, len(locs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for i, loc := range locs {
		i, loc := i, loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = &errs.Timeout{Op: "read.fanOut"}
				}
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			r := work(ctx, loc)
			results[i] = r
			if r.err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = r.err
					cancel()
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && firstErr == nil {
		firstErr = &errs.Timeout{Op: "read.fanOut"}
	}
	return results, firstErr
}

func (c *Coordinator) queryShard(ctx context.Context, sch schema.Schema, cond predicate.Predicate, sel stmt.SelectSQLStatement, loc metadata.Location) shardResult {
	if loc.NodeID != c.NodeID {
		recs, err := c.forwardQuery(ctx, loc.NodeID, sel)
		return shardResult{records: recs, err: err}
	}
	idx, err := c.Shards.Get(loc.Metric, loc.BinIndex)
	if err != nil {
		return shardResult{err: err}
	}
	limit := shardindex.MaxLimit
	if sel.Limit != nil {
		limit = *sel.Limit
	}
	proj := projectionOf(sel.Fields)
	recs, err := idx.Query(sch, cond, proj, limit, sortOf(sel.Order))
	return shardResult{records: recs, err: err}
}

func (c *Coordinator) executeFlat(ctx context.Context, sch schema.Schema, cond predicate.Predicate, sel stmt.SelectSQLStatement, locs []metadata.Location) ([]scalar.Record, error) {
	results, err := c.fanOut(ctx, locs, func(ctx context.Context, loc metadata.Location) shardResult {
		return c.queryShard(ctx, sch, cond, sel, loc)
	})
	if err != nil {
		return nil, err
	}

	var all []scalar.Record
	for _, r := range results {
		all = append(all, r.records...)
	}

	if sel.Order != nil {
		sortRecords(all, *sel.Order)
	}
	if sel.Limit != nil && len(all) > *sel.Limit {
		all = all[:*sel.Limit]
	}
	return all, nil
}

func sortRecords(recs []scalar.Record, order stmt.OrderBy) {
	sort.SliceStable(recs, func(i, j int) bool {
		fi, _ := recs[i].Field(order.Field)
		fj, _ := recs[j].Field(order.Field)
		cmp := fi.Compare(fj)
		if order.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func projectionOf(p stmt.Projection) shardindex.Projection {
	if p.AllFields {
		return shardindex.Projection{AllFields: true}
	}
	fields := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if f.Aggregation == "" {
			fields[f.Name] = true
		}
	}
	return shardindex.Projection{Fields: fields}
}

func sortOf(o *stmt.OrderBy) *shardindex.Sort {
	if o == nil {
		return nil
	}
	return &shardindex.Sort{Field: o.Field, Descending: o.Descending}
}
