// Package schema implements the per-metric schema registry (spec.md §4.2,
// component C2): tracking, persisting and evolving the typed field set of
// each metric under the compatibility rule.
//
// See doc.go for the package overview.
package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/scalar"
)

// Schema is the declared, typed field set of one metric (spec.md §3).
// Field names are unique; exactly one field has class Value; exactly one
// has class Timestamp. Schema values are treated as immutable once
// constructed — Update always returns a new Schema rather than mutating
// the receiver, which is what lets the registry hand out snapshots without
// copying on every read.
type Schema struct {
	Metric string
	Fields map[string]scalar.SchemaField
}

// New builds a Schema from a Record by inferring field classes: the
// reserved "timestamp" and "value" names, any other name the caller
// declares as a dimension, and any other name declared as a tag
// (spec.md §4.5 step 1 — "derive a candidate schema from the record").
func New(metric string, rec scalar.Record) Schema {
	fields := map[string]scalar.SchemaField{
		"timestamp": {Name: "timestamp", Class: scalar.ClassTimestamp, Kind: scalar.BIGINT},
		"value":     {Name: "value", Class: scalar.ClassValue, Kind: rec.Value.Kind},
	}
	for name, v := range rec.Dimensions {
		fields[name] = scalar.SchemaField{Name: name, Class: scalar.ClassDimension, Kind: v.Kind}
	}
	for name, v := range rec.Tags {
		fields[name] = scalar.SchemaField{Name: name, Class: scalar.ClassTag, Kind: v.Kind}
	}
	return Schema{Metric: metric, Fields: fields}
}

// Validate checks rec against s under the unknown/missing-field policy of
// spec.md §4.1: unknown fields are allowed (caller should evolve the
// schema first); missing non-timestamp/non-value fields are permitted
// (sparse rows). It returns a SchemaViolation-shaped error only when a
// field present in both rec and s has a mismatched scalar kind.
func (s Schema) Validate(rec scalar.Record) error {
	check := func(name string, v scalar.Value) error {
		f, ok := s.Fields[name]
		if !ok {
			return nil // unknown field: evolution handles this, not validation
		}
		if f.Kind != v.Kind {
			return fmt.Errorf("schema violation: field %q expected %s, found %s", name, f.Kind, v.Kind)
		}
		return nil
	}
	if err := check("value", rec.Value); err != nil {
		return err
	}
	for name, v := range rec.Dimensions {
		if err := check(name, v); err != nil {
			return err
		}
	}
	for name, v := range rec.Tags {
		if err := check(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Compatible implements the compatibility rule of spec.md §4.2: for every
// field present in both old (s) and proposed, the indexType must be equal;
// otherwise the update is rejected with one Reason per offending field.
// On success the effective schema is the union of both field sets, with
// proposed's entries winning for shared names (already verified
// type-equal by this point).
func (s Schema) Compatible(proposed Schema) (Schema, error) {
	var merr *multierror.Error
	merged := make(map[string]scalar.SchemaField, len(s.Fields)+len(proposed.Fields))
	for name, f := range s.Fields {
		merged[name] = f
	}
	for name, f := range proposed.Fields {
		if old, ok := s.Fields[name]; ok && old.Kind != f.Kind {
			merr = multierror.Append(merr, &errs.Reason{
				Field:   name,
				OldKind: string(old.Kind),
				NewKind: string(f.Kind),
			})
			continue
		}
		merged[name] = f
	}
	if merr.ErrorOrNil() != nil {
		return Schema{}, &errs.SchemaConflict{Metric: s.Metric, Reasons: merr}
	}
	return Schema{Metric: s.Metric, Fields: merged}, nil
}

// ValueField returns the schema's single Value-class field.
func (s Schema) ValueField() (scalar.SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Class == scalar.ClassValue {
			return f, true
		}
	}
	return scalar.SchemaField{}, false
}

// TimestampField returns the schema's single Timestamp-class field.
func (s Schema) TimestampField() (scalar.SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Class == scalar.ClassTimestamp {
			return f, true
		}
	}
	return scalar.SchemaField{}, false
}
