// Package stmt models the externally-supplied statement AST spec.md §4.6
// and §6 assume ExecuteSQL receives after parsing: SelectSQLStatement,
// InsertSQLStatement, DeleteSQLStatement and DropSQLStatement. Parsing SQL
// text into these structs is out of scope (spec.md Non-goals); callers
// build them programmatically.
package stmt

import (
	"time"

	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
)

// FieldSelection is one entry of a ListFields projection: a field name and
// an optional aggregation function applied to it.
type FieldSelection struct {
	Name        string
	Aggregation string // "", "sum", "count", "min", "max", "avg"
}

// Projection is either AllFields ('*') or an explicit ListFields set.
type Projection struct {
	AllFields bool
	Fields    []FieldSelection
}

// OrderBy names the sort key and direction for a SELECT's merged results.
type OrderBy struct {
	Field      string
	Descending bool
}

// SelectSQLStatement is the read-coordinator command payload (spec.md
// §4.6): namespace, metric, projection, an optional condition tree, an
// optional group-by field, an optional order, and an optional limit.
type SelectSQLStatement struct {
	Namespace string
	Metric    string
	Fields    Projection
	Condition predicate.Predicate // nil means "no condition"
	GroupBy   string              // "" means ungrouped
	Order     *OrderBy
	Limit     *int
	Deadline  time.Duration // 0 means "use configured default"
}

// InsertSQLStatement is the single-record write-coordinator command
// payload (spec.md §4.5 MapInput, reshaped as a statement for ExecuteSQL).
type InsertSQLStatement struct {
	Namespace string
	Metric    string
	Record    scalar.Record
}

// DeleteSQLStatement is the write-coordinator ExecuteDeleteStatement
// payload: a namespace, metric and condition identifying which records to
// remove.
type DeleteSQLStatement struct {
	Namespace string
	Metric    string
	Condition predicate.Predicate
}

// DropSQLStatement is the write-coordinator DropMetric payload.
type DropSQLStatement struct {
	Namespace string
	Metric    string
}

// NonAggregatedNonGroupFields returns the names of projected fields that
// are neither aggregated nor equal to groupBy — a non-empty result with a
// non-empty groupBy is the "group-by requires aggregation" violation.
func (p Projection) NonAggregatedNonGroupFields(groupBy string) []string {
	var bad []string
	for _, f := range p.Fields {
		if f.Aggregation == "" && f.Name != groupBy {
			bad = append(bad, f.Name)
		}
	}
	return bad
}
