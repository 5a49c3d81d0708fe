package shardindex

import (
	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
)

// translate implements the predicate-translation rules of spec.md §4.3:
// equality -> term/point-exact query; range -> point-range query;
// comparison operators -> half-open or open point ranges; conjunction ->
// boolean AND; disjunction -> boolean OR; negation -> boolean NOT
// wrapping a MatchAll subtraction. Text equality uses a MatchQuery against
// the keyword-analysed VARCHAR field, which is exact-term matching since
// the field was never tokenised or case-folded at index time; every other
// comparison uses a NumericRangeQuery collapsed to a single point when
// both bounds are set to the same value.
func translate(sch schema.Schema, pred predicate.Predicate) bleveQuery.Query {
	switch p := pred.(type) {
	case predicate.MatchAll:
		return bleve.NewMatchAllQuery()
	case predicate.Comparison:
		return translateComparison(sch, p)
	case predicate.Range:
		return numericRange(p.Field, &p.Lo.I, &p.Hi.I, p.Lo.Kind == scalar.DECIMAL)
	case predicate.And:
		terms := make([]bleveQuery.Query, len(p.Terms))
		for i, t := range p.Terms {
			terms[i] = translate(sch, t)
		}
		return bleve.NewConjunctionQuery(terms...)
	case predicate.Or:
		terms := make([]bleveQuery.Query, len(p.Terms))
		for i, t := range p.Terms {
			terms[i] = translate(sch, t)
		}
		return bleve.NewDisjunctionQuery(terms...)
	case predicate.Not:
		inner := translate(sch, p.Term)
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(inner)
		return b
	}
	return bleve.NewMatchAllQuery()
}

func translateComparison(sch schema.Schema, c predicate.Comparison) bleveQuery.Query {
	field, isText := fieldKind(sch, c.Field)
	if isText {
		switch c.Op {
		case predicate.Eq:
			mq := bleve.NewMatchQuery(c.Value.S)
			mq.SetField(c.Field)
			return mq
		case predicate.Neq:
			mq := bleve.NewMatchQuery(c.Value.S)
			mq.SetField(c.Field)
			b := bleve.NewBooleanQuery()
			b.AddMust(bleve.NewMatchAllQuery())
			b.AddMustNot(mq)
			return b
		}
		return bleve.NewMatchAllQuery()
	}
	_ = field
	v := c.Value.Float64()
	switch c.Op {
	case predicate.Eq:
		return numericRangeF(c.Field, &v, &v)
	case predicate.Gte:
		return numericRangeF(c.Field, &v, nil)
	case predicate.Gt:
		return numericRangeExclusive(c.Field, &v, nil, true)
	case predicate.Lte:
		return numericRangeF(c.Field, nil, &v)
	case predicate.Lt:
		return numericRangeExclusive(c.Field, nil, &v, false)
	case predicate.Neq:
		eq := numericRangeF(c.Field, &v, &v)
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(eq)
		return b
	}
	return bleve.NewMatchAllQuery()
}

func fieldKind(sch schema.Schema, name string) (scalar.Kind, bool) {
	if name == "timestamp" {
		return scalar.BIGINT, false
	}
	if name == "value" {
		if f, ok := sch.ValueField(); ok {
			return f.Kind, f.Kind == scalar.VARCHAR
		}
	}
	if f, ok := sch.Fields[name]; ok {
		return f.Kind, f.Kind == scalar.VARCHAR
	}
	return scalar.BIGINT, false
}

func numericRange(field string, loI, hiI *int64, isDecimalHint bool) bleveQuery.Query {
	var lo, hi *float64
	if loI != nil {
		f := float64(*loI)
		lo = &f
	}
	if hiI != nil {
		f := float64(*hiI)
		hi = &f
	}
	return numericRangeF(field, lo, hi)
}

func numericRangeF(field string, lo, hi *float64) bleveQuery.Query {
	inclusiveTrue := true
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusiveTrue, &inclusiveTrue)
	q.SetField(field)
	return q
}

func numericRangeExclusive(field string, lo, hi *float64, lowerExclusive bool) bleveQuery.Query {
	inclLo, inclHi := true, true
	if lowerExclusive {
		inclLo = false
	} else {
		inclHi = false
	}
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclLo, &inclHi)
	q.SetField(field)
	return q
}
