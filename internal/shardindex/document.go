package shardindex

import (
	"strconv"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
)

// rawSuffix marks the stored-only companion field that carries a scalar's
// exact canonical string form, so INT/BIGINT/DECIMAL round-trip
// bit-for-bit (spec.md §8) even though the queryable shadow field is a
// bleve float64 numeric field.
const rawSuffix = scalar.RawFieldSuffix

// allFieldNames returns every physical index field a schema's declared
// fields materialise into — the queryable field plus, for numeric kinds,
// its raw companion — via SchemaField.IndexFieldNames, so Query requests
// exactly the fields toDocument below wrote and nothing falls back to a
// lossy float64 reconstruction that IndexFieldNames' raw companion exists
// to avoid.
func allFieldNames(sch schema.Schema) []string {
	names := make([]string, 0, len(sch.Fields)*2)
	for _, f := range sch.Fields {
		names = append(names, f.IndexFieldNames()...)
	}
	return names
}

// toDocument materialises rec into the map bleve indexes as one document,
// per the field rules of spec.md §4.1: the timestamp becomes a BIGINT
// point field; the value becomes a point+stored field typed by its
// runtime tag; each dimension/tag becomes a keyword-analysed+stored field
// (VARCHAR) or a point+stored field (numeric). Every numeric field also
// gets its raw companion field, matching SchemaField.IndexFieldNames.
func toDocument(sch schema.Schema, rec scalar.Record) (map[string]interface{}, error) {
	if err := sch.Validate(rec); err != nil {
		return nil, err
	}
	doc := map[string]interface{}{
		"timestamp":             float64(rec.Timestamp),
		"timestamp" + rawSuffix: scalar.BigInt(rec.Timestamp).String(),
		"value":                 rec.Value.Float64(),
		"value" + rawSuffix:     rec.Value.String(),
		"value_kind":            string(rec.Value.Kind),
	}
	put := func(name string, v scalar.Value) {
		if v.Kind == scalar.VARCHAR {
			doc[name] = v.S
			return
		}
		doc[name] = v.Float64()
		doc[name+rawSuffix] = v.String()
	}
	for name, v := range rec.Dimensions {
		put(name, v)
	}
	for name, v := range rec.Tags {
		put(name, v)
	}
	return doc, nil
}

// fromDocument reconstructs a Record from a bleve hit's stored fields,
// per spec.md §4.3 "Record reconstruction": dimensions/tags are drawn
// from the stored fields whose names match the schema's class entries and
// that are requested by projection (or '*'); value and timestamp are
// always materialised from the reserved fields.
func fromDocument(sch schema.Schema, fields map[string]interface{}, projection map[string]bool, allFields bool) (scalar.Record, error) {
	tsVal, err := scalarFromRaw(fields["timestamp"], fields, "timestamp", scalar.BIGINT)
	if err != nil {
		return scalar.Record{}, &errs.IoError{Op: "shardindex.fromDocument.timestamp", Err: err}
	}
	valueKind := scalar.Kind(stringField(fields, "value_kind"))
	val, err := scalarFromFields(fields, "value", valueKind)
	if err != nil {
		return scalar.Record{}, &errs.IoError{Op: "shardindex.fromDocument.value", Err: err}
	}

	rec := scalar.New(tsVal.I, val)
	for name, f := range sch.Fields {
		if f.Class != scalar.ClassDimension && f.Class != scalar.ClassTag {
			continue
		}
		if !allFields && !projection[name] {
			continue
		}
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := scalarFromRaw(raw, fields, name, f.Kind)
		if err != nil {
			continue // partial reconstruction failure: skip field, don't abort record (spec.md §7)
		}
		switch f.Class {
		case scalar.ClassDimension:
			rec.Dimensions[name] = v
		case scalar.ClassTag:
			rec.Tags[name] = v
		}
	}
	return rec, nil
}

func numberField(fields map[string]interface{}, name string) (float64, error) {
	switch v := fields[name].(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, errNoSuchField(name)
	}
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// scalarFromFields reconstructs the reserved "value" field, preferring the
// exact raw companion field for bit-exact INT/BIGINT/DECIMAL round trip.
func scalarFromFields(fields map[string]interface{}, name string, kind scalar.Kind) (scalar.Value, error) {
	return scalarFromRaw(fields[name], fields, name, kind)
}

func scalarFromRaw(raw interface{}, fields map[string]interface{}, name string, kind scalar.Kind) (scalar.Value, error) {
	if kind == scalar.VARCHAR {
		s, _ := raw.(string)
		return scalar.Str(s), nil
	}
	rawStr, hasRaw := fields[name+rawSuffix].(string)
	switch kind {
	case scalar.INT, scalar.BIGINT:
		if hasRaw {
			n, err := strconv.ParseInt(rawStr, 10, 64)
			if err != nil {
				return scalar.Value{}, err
			}
			if kind == scalar.INT {
				return scalar.Int(n), nil
			}
			return scalar.BigInt(n), nil
		}
		f, err := numberField(fields, name)
		if err != nil {
			return scalar.Value{}, err
		}
		if kind == scalar.INT {
			return scalar.Int(int64(f)), nil
		}
		return scalar.BigInt(int64(f)), nil
	case scalar.DECIMAL:
		if hasRaw {
			d, err := decimalFromString(rawStr)
			if err != nil {
				return scalar.Value{}, err
			}
			return scalar.Dec(d), nil
		}
		f, err := numberField(fields, name)
		if err != nil {
			return scalar.Value{}, err
		}
		return scalar.Dec(decimalFromFloat(f)), nil
	}
	return scalar.Value{}, errNoSuchField(name)
}

type fieldError string

func (e fieldError) Error() string { return "shardindex: no such field " + string(e) }

func errNoSuchField(name string) error { return fieldError(name) }
