package read

import (
	"context"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardindex"
	"github.com/dreamware/nsdb/internal/stmt"
)

func aggregatorOf(sel stmt.SelectSQLStatement) (shardindex.Aggregator, error) {
	for _, f := range sel.Fields.Fields {
		if f.Aggregation != "" {
			return shardindex.Aggregator(f.Aggregation), nil
		}
	}
	return "", &errs.InvalidStatement{Detail: "group-by requires aggregation"}
}

func (c *Coordinator) groupShard(ctx context.Context, sch schema.Schema, cond predicate.Predicate, sel stmt.SelectSQLStatement, agg shardindex.Aggregator, loc metadata.Location) shardResult {
	if loc.NodeID != c.NodeID {
		recs, err := c.forwardQuery(ctx, loc.NodeID, sel)
		return shardResult{groups: recs, err: err}
	}
	idx, err := c.Shards.Get(loc.Metric, loc.BinIndex)
	if err != nil {
		return shardResult{err: err}
	}
	recs, err := idx.GroupedAggregation(sch, cond, sel.GroupBy, agg, nil, nil)
	return shardResult{groups: recs, err: err}
}

// executeGrouped implements spec.md §4.6.1's grouped merge semantics:
// sum/count reduce by addition, min/max reduce by the corresponding
// operator, avg is rejected as a distributed aggregation (shards would
// need to also report their per-group count for a correct weighted
// average, which the wire shape here does not carry).
func (c *Coordinator) executeGrouped(ctx context.Context, sch schema.Schema, cond predicate.Predicate, sel stmt.SelectSQLStatement, locs []metadata.Location) ([]scalar.Record, error) {
	agg, err := aggregatorOf(sel)
	if err != nil {
		return nil, err
	}
	if agg == shardindex.AggAvg {
		return nil, &errs.UnsupportedDistributedAggregation{Aggregator: string(agg)}
	}

	results, err := c.fanOut(ctx, locs, func(ctx context.Context, loc metadata.Location) shardResult {
		return c.groupShard(ctx, sch, cond, sel, agg, loc)
	})
	if err != nil {
		return nil, err
	}

	merged := map[string]scalar.Record{}
	order := []string{}
	for _, r := range results {
		for _, rec := range r.groups {
			key := rec.Dimensions[sel.GroupBy].String()
			existing, ok := merged[key]
			if !ok {
				merged[key] = rec
				order = append(order, key)
				continue
			}
			merged[key] = reduceGroup(existing, rec, agg)
		}
	}

	out := make([]scalar.Record, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}

	if sel.Order != nil {
		sortRecords(out, *sel.Order)
	}
	if sel.Limit != nil && len(out) > *sel.Limit {
		out = out[:*sel.Limit]
	}
	return out, nil
}

func reduceGroup(a, b scalar.Record, agg shardindex.Aggregator) scalar.Record {
	switch agg {
	case shardindex.AggSum, shardindex.AggCount:
		a.Value = addValues(a.Value, b.Value)
	case shardindex.AggMin:
		if b.Value.Compare(a.Value) < 0 {
			a.Value = b.Value
		}
	case shardindex.AggMax:
		if b.Value.Compare(a.Value) > 0 {
			a.Value = b.Value
		}
	}
	aCount := a.Dimensions["_count"]
	bCount := b.Dimensions["_count"]
	a.Dimensions["_count"] = scalar.BigInt(aCount.I + bCount.I)
	return a
}

func addValues(a, b scalar.Value) scalar.Value {
	switch a.Kind {
	case scalar.INT:
		return scalar.Int(a.I + b.I)
	case scalar.BIGINT:
		return scalar.BigInt(a.I + b.I)
	case scalar.DECIMAL:
		return scalar.Dec(a.D.Add(b.D))
	}
	return a
}
