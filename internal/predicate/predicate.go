// Package predicate is the neutral, index-agnostic representation of a
// WHERE-clause fragment: the "residual predicate" left over once the read
// coordinator has extracted a time range from a statement's condition
// (spec.md §4.6 step 3). A shard index translates a Predicate into its own
// query representation (internal/shardindex does this against bleve),
// which keeps the read coordinator free of any storage-engine-specific
// query type.
package predicate

import "github.com/dreamware/nsdb/internal/scalar"

// Op is a comparison operator usable against a single field.
type Op string

const (
	Eq  Op = "="
	Neq Op = "!="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

// Predicate is a boolean expression tree over record fields. Exactly one
// of the concrete variants below is used per node; Predicate itself is an
// empty marker interface, matching the closed-sum-type style used
// throughout the core (spec.md §9).
type Predicate interface{ isPredicate() }

// Comparison tests one field against a literal value.
type Comparison struct {
	Field string
	Op    Op
	Value scalar.Value
}

func (Comparison) isPredicate() {}

// Range tests a field against an inclusive [Lo, Hi] bound. Used for the
// extracted time range as well as explicit BETWEEN-shaped conditions on
// numeric fields.
type Range struct {
	Field  string
	Lo, Hi scalar.Value
}

func (Range) isPredicate() {}

// And is a conjunction of sub-predicates.
type And struct{ Terms []Predicate }

func (And) isPredicate() {}

// Or is a disjunction of sub-predicates.
type Or struct{ Terms []Predicate }

func (Or) isPredicate() {}

// Not negates a sub-predicate. Per spec.md §4.3, this is realised as a
// boolean NOT wrapping a MatchAll subtraction at the index layer.
type Not struct{ Term Predicate }

func (Not) isPredicate() {}

// MatchAll matches every record; the zero-value residual predicate when a
// statement has no WHERE clause left after time-range extraction.
type MatchAll struct{}

func (MatchAll) isPredicate() {}

// TimeRange extracts a contiguous [lo, hi] bound on the reserved
// "timestamp" field from pred, per spec.md §4.6 step 3. It returns
// ok=false if pred places no constraint on timestamp at all, in which
// case the caller should use the full i64 range.
//
// NOT on a timestamp comparison can yield a non-contiguous pair (spec.md
// §4.6: "may yield a non-contiguous pair handled as a disjunction");
// TimeRange only ever reports the single contiguous span it can extract
// directly from And/Comparison/Range nodes and leaves disjunctions and
// negations as part of the residual predicate for in-shard evaluation.
func TimeRange(pred Predicate, min, max int64) (lo, hi int64, ok bool) {
	lo, hi = min, max
	found := false
	var walk func(p Predicate)
	walk = func(p Predicate) {
		switch v := p.(type) {
		case And:
			for _, t := range v.Terms {
				walk(t)
			}
		case Range:
			if v.Field == "timestamp" {
				lo = maxInt64(lo, v.Lo.I)
				hi = minInt64(hi, v.Hi.I)
				found = true
			}
		case Comparison:
			if v.Field == "timestamp" {
				switch v.Op {
				case Eq:
					lo, hi = maxInt64(lo, v.Value.I), minInt64(hi, v.Value.I)
				case Gte:
					lo = maxInt64(lo, v.Value.I)
				case Gt:
					lo = maxInt64(lo, v.Value.I+1)
				case Lte:
					hi = minInt64(hi, v.Value.I)
				case Lt:
					hi = minInt64(hi, v.Value.I-1)
				}
				found = true
			}
		}
	}
	walk(pred)
	return lo, hi, found
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
