// Package errs defines the closed set of caller-visible error kinds the
// core surfaces (spec.md §7). Each kind is a concrete type carrying
// structured fields rather than a bare string, so callers can use
// errors.As to branch on them instead of matching message text.
package errs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Reason describes one offending field in a SchemaConflict.
type Reason struct {
	Field    string
	OldKind  string
	NewKind  string
}

func (r Reason) Error() string {
	return fmt.Sprintf("field %q: incompatible kind change %s -> %s", r.Field, r.OldKind, r.NewKind)
}

// SchemaConflict is returned when a proposed schema update is incompatible
// with the existing schema (spec.md §4.2 compatibility rule). Reasons
// aggregates one Reason per offending field using hashicorp/go-multierror,
// so the caller can range over errs.SchemaConflict.Reasons.Errors or use
// multierror.Group semantics rather than parsing a joined string.
type SchemaConflict struct {
	Metric  string
	Reasons *multierror.Error
}

func (e *SchemaConflict) Error() string {
	return fmt.Sprintf("schema conflict for metric %q: %v", e.Metric, e.Reasons)
}

func (e *SchemaConflict) Unwrap() error { return e.Reasons.ErrorOrNil() }

// MetricNotFound is returned by reads/drops against an unknown metric.
type MetricNotFound struct {
	Metric string
}

func (e *MetricNotFound) Error() string {
	return fmt.Sprintf("metric not found: %q", e.Metric)
}

// InvalidStatement is returned when a parsed statement fails a semantic
// check (e.g. group-by without aggregation).
type InvalidStatement struct {
	Detail string
}

func (e *InvalidStatement) Error() string {
	return fmt.Sprintf("invalid statement: %s", e.Detail)
}

// Timeout is returned when an actor ask or a shard fan-out exceeds its
// configured deadline.
type Timeout struct {
	Op string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("timeout: %s", e.Op)
}

// UnsupportedDistributedAggregation is returned for avg() across shards
// without a count channel (spec.md §4.6.1).
type UnsupportedDistributedAggregation struct {
	Aggregator string
}

func (e *UnsupportedDistributedAggregation) Error() string {
	return fmt.Sprintf("unsupported distributed aggregation: %s", e.Aggregator)
}

// IoError wraps an underlying index/storage failure. The core does not
// retry these (spec.md §7).
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// Unavailable is returned when the shard owner for a request cannot be
// reached.
type Unavailable struct {
	NodeID string
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("node unavailable: %s", e.NodeID)
}
