package shardindex

import (
	"sort"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
)

// Sort describes the global sort key a query should apply before
// truncating to limit (spec.md §4.3 query(...,sort?)).
type Sort struct {
	Field      string
	Descending bool
}

// Aggregator is one of the five grouped-aggregation functions spec.md
// §4.3 names.
type Aggregator string

const (
	AggSum   Aggregator = "sum"
	AggCount Aggregator = "count"
	AggMin   Aggregator = "min"
	AggMax   Aggregator = "max"
	AggAvg   Aggregator = "avg"
)

// Projection selects which dimension/tag fields are returned.
// AllFields=true means '*' was requested.
type Projection struct {
	AllFields bool
	Fields    map[string]bool
}

// Query implements spec.md §4.3 query(schema, predicate, projection,
// limit, sort?): executes pred against the shard, reconstructs matching
// documents into Records, optionally sorted, and truncates to limit.
// limit=0 returns no rows (spec.md §8 boundary case).
func (s *ShardIndex) Query(sch schema.Schema, pred predicate.Predicate, proj Projection, limit int, sort_ *Sort) ([]scalar.Record, error) {
	atomic.AddUint64(&s.stats.Queries, 1)
	if limit == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(translate(sch, pred))
	req.Fields = append(allFieldNames(sch), "value_kind")
	req.Size = limit
	if sort_ != nil {
		field := sort_.Field
		if sort_.Descending {
			field = "-" + field
		} else {
			field = "+" + field
		}
		req.SortBy([]string{field})
	} else {
		req.Size = maxSearchSize
	}

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, &errs.IoError{Op: "shardindex.Query", Err: err}
	}

	out := make([]scalar.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, err := fromDocument(sch, hit.Fields, proj.Fields, proj.AllFields)
		if err != nil {
			atomic.AddUint64(&s.stats.ReconstructErr, 1)
			continue
		}
		out = append(out, rec)
	}
	if sort_ == nil && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// maxSearchSize bounds an unsorted query's pre-truncation fetch size; the
// coordinator applies the real global limit after merging shard results
// (spec.md §4.6.1), so a single shard is never asked to return more than
// this before the caller's own limit is applied.
const maxSearchSize = 100000

// MaxLimit is the per-shard fetch cap a caller should pass to Query when a
// statement carries no explicit limit.
const MaxLimit = maxSearchSize

// CountQuery implements spec.md §4.3 countQuery(schema, predicate, limit):
// like Query, but returns only the match count, capped at limit.
func (s *ShardIndex) CountQuery(sch schema.Schema, pred predicate.Predicate, limit int) (int64, error) {
	atomic.AddUint64(&s.stats.Queries, 1)
	req := bleve.NewSearchRequest(translate(sch, pred))
	req.Size = 0
	res, err := s.idx.Search(req)
	if err != nil {
		return 0, &errs.IoError{Op: "shardindex.CountQuery", Err: err}
	}
	total := int64(res.Total)
	if limit > 0 && total > int64(limit) {
		total = int64(limit)
	}
	return total, nil
}

// All implements spec.md §4.3 all(schema): every record in the shard, no
// predicate, no limit.
func (s *ShardIndex) All(sch schema.Schema) ([]scalar.Record, error) {
	return s.Query(sch, predicate.MatchAll{}, Projection{AllFields: true}, maxSearchSize, nil)
}

// GroupedAggregation implements spec.md §4.3 groupedAggregation: one
// synthetic record per distinct value of groupByField, carrying the group
// key as a dimension and the aggregate as the value field, using a bleve
// facet over groupByField to enumerate groups and per-group numeric
// scans to compute the aggregate (bleve facets report counts natively;
// sum/min/max/avg are computed by re-querying each group's numeric
// "value" field, which keeps the translation layer honest about what
// bleve can and cannot aggregate natively).
func (s *ShardIndex) GroupedAggregation(sch schema.Schema, pred predicate.Predicate, groupByField string, agg Aggregator, limit *int, sort_ *Sort) ([]scalar.Record, error) {
	atomic.AddUint64(&s.stats.Queries, 1)

	req := bleve.NewSearchRequest(translate(sch, pred))
	req.Size = 0
	facetSize := maxSearchSize
	if limit != nil {
		facetSize = *limit
	}
	req.AddFacet("groups", bleve.NewFacetRequest(groupByField, facetSize))

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, &errs.IoError{Op: "shardindex.GroupedAggregation.facet", Err: err}
	}
	facet := res.Facets["groups"]
	if facet == nil {
		return nil, nil
	}

	out := make([]scalar.Record, 0, len(facet.Terms.Terms()))
	for _, term := range facet.Terms.Terms() {
		groupPred := predicate.And{Terms: []predicate.Predicate{
			pred,
			predicate.Comparison{Field: groupByField, Op: predicate.Eq, Value: scalar.Str(term.Term)},
		}}
		value, count, err := s.aggregateGroup(sch, groupPred, agg)
		if err != nil {
			return nil, err
		}
		rec := scalar.New(0, value)
		groupKind, _ := fieldKind(sch, groupByField)
		gv := scalar.Value{Kind: groupKind, S: term.Term}
		if groupKind != scalar.VARCHAR {
			gv, _ = scalarFromRaw(term.Term, map[string]interface{}{groupByField: term.Term}, groupByField, groupKind)
		}
		rec.Dimensions[groupByField] = gv
		rec.Dimensions["_count"] = scalar.BigInt(int64(count))
		out = append(out, rec)
	}

	if sort_ != nil {
		sortGroupRecords(out, *sort_)
	}
	if limit != nil && len(out) > *limit {
		out = out[:*limit]
	}
	return out, nil
}

func sortGroupRecords(recs []scalar.Record, s Sort) {
	sort.Slice(recs, func(i, j int) bool {
		fi, _ := recs[i].Field(s.Field)
		fj, _ := recs[j].Field(s.Field)
		cmp := fi.Compare(fj)
		if s.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// aggregateGroup computes the aggregate for one group's matching
// documents by scanning the "value" numeric field of every match. Groups
// are expected to be shard-local and modest in size (a single bin of a
// single metric); for very large groups this would want a bleve numeric
// facet instead of a per-document scan, noted as a follow-up.
func (s *ShardIndex) aggregateGroup(sch schema.Schema, pred predicate.Predicate, agg Aggregator) (scalar.Value, int64, error) {
	if agg == AggCount {
		n, err := s.CountQuery(sch, pred, 0)
		return scalar.BigInt(n), n, err
	}

	recs, err := s.Query(sch, pred, Projection{AllFields: false, Fields: map[string]bool{}}, maxSearchSize, nil)
	if err != nil {
		return scalar.Value{}, 0, err
	}
	if len(recs) == 0 {
		return scalar.BigInt(0), 0, nil
	}
	switch agg {
	case AggSum:
		sum := recs[0].Value
		for _, r := range recs[1:] {
			sum = sumValues(sum, r.Value)
		}
		return sum, int64(len(recs)), nil
	case AggAvg:
		// Division has no exact INT/BIGINT representation in general, so avg
		// is reported as DECIMAL regardless of the value field's declared
		// Kind, unlike sum/min/max which preserve it.
		var sum float64
		for _, r := range recs {
			sum += r.Value.Float64()
		}
		return scalar.Dec(decimalFromFloat(sum / float64(len(recs)))), int64(len(recs)), nil
	case AggMin:
		min := recs[0].Value
		for _, r := range recs[1:] {
			if r.Value.Compare(min) < 0 {
				min = r.Value
			}
		}
		return min, int64(len(recs)), nil
	case AggMax:
		max := recs[0].Value
		for _, r := range recs[1:] {
			if r.Value.Compare(max) > 0 {
				max = r.Value
			}
		}
		return max, int64(len(recs)), nil
	}
	return scalar.Value{}, 0, &errs.InvalidStatement{Detail: "unknown aggregator " + string(agg)}
}

// sumValues adds two values of the same Kind, preserving it — mirrors
// internal/read/aggregate.go's addValues, which reduces these same
// per-shard sums across shards and must agree on what "sum" returns.
func sumValues(a, b scalar.Value) scalar.Value {
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
