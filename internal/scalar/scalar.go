// Package scalar implements the typed value system shared by every record
// field in NSDb: dimensions, tags, the reserved value field and the
// reserved timestamp field all resolve to one of the variants in Kind.
//
// See doc.go for the package-level design rationale.
package scalar

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the closed enumeration of scalar types a record field may carry.
// It is persisted as a short stable tag string (never a reflected class
// name) so schema snapshots remain portable across process restarts and
// node versions.
type Kind string

const (
	// INT is a 32-bit-range integer, stored and compared as int64.
	INT Kind = "INT"
	// BIGINT is a 64-bit signed integer.
	BIGINT Kind = "BIGINT"
	// DECIMAL is an arbitrary-precision decimal, backed by shopspring/decimal.
	DECIMAL Kind = "DECIMAL"
	// VARCHAR is a UTF-8 string, tokenised for term queries.
	VARCHAR Kind = "VARCHAR"
)

// Valid reports whether k is one of the four closed variants.
func (k Kind) Valid() bool {
	switch k {
	case INT, BIGINT, DECIMAL, VARCHAR:
		return true
	}
	return false
}

// Value is a tagged union over the four scalar kinds. Exactly one of the
// typed fields is meaningful, selected by Kind; callers must never branch
// on Go's dynamic type of an interface{} (design note in spec.md §9 — no
// runtime reflection-based dispatch).
type Value struct {
	Kind Kind
	I    int64
	D    decimal.Decimal
	S    string
}

// Int constructs an INT-kind value.
func Int(v int64) Value { return Value{Kind: INT, I: v} }

// BigInt constructs a BIGINT-kind value.
func BigInt(v int64) Value { return Value{Kind: BIGINT, I: v} }

// Dec constructs a DECIMAL-kind value.
func Dec(v decimal.Decimal) Value { return Value{Kind: DECIMAL, D: v} }

// Str constructs a VARCHAR-kind value.
func Str(v string) Value { return Value{Kind: VARCHAR, S: v} }

// UnmarshalJSON decodes the default struct encoding of Value and resets D
// to the zero Decimal for non-DECIMAL kinds, so a decoded value equals the
// one that was encoded.
func (v *Value) UnmarshalJSON(data []byte) error {
	type plain Value
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Kind != DECIMAL {
		p.D = decimal.Decimal{}
	}
	*v = Value(p)
	return nil
}

// Compare orders two values of the same Kind. Decimal comparison uses
// decimal.Decimal.Cmp; comparing values of differing Kind panics, since the
// type system guarantees callers only ever compare like-typed fields after
// schema validation.
func (v Value) Compare(other Value) int {
	if v.Kind != other.Kind {
		panic(fmt.Sprintf("scalar: cannot compare %s with %s", v.Kind, other.Kind))
	}
	switch v.Kind {
	case INT, BIGINT:
		switch {
		case v.I < other.I:
			return -1
		case v.I > other.I:
			return 1
		default:
			return 0
		}
	case DECIMAL:
		return v.D.Cmp(other.D)
	case VARCHAR:
		switch {
		case v.S < other.S:
			return -1
		case v.S > other.S:
			return 1
		default:
			return 0
		}
	}
	panic("scalar: unreachable kind " + string(v.Kind))
}

// String renders the canonical serialised form of the value, used both for
// term-query encoding of non-VARCHAR kinds and for human-readable display.
func (v Value) String() string {
	switch v.Kind {
	case INT, BIGINT:
		return fmt.Sprintf("%d", v.I)
	case DECIMAL:
		return v.D.String()
	case VARCHAR:
		return v.S
	}
	return ""
}

// Float64 returns a best-effort float64 projection, used for the numeric
// index fields of a shard document and by the avg aggregation.
// DECIMAL loses precision here by design: aggregation is a reporting path,
// not a ledger.
func (v Value) Float64() float64 {
	switch v.Kind {
	case INT, BIGINT:
		return float64(v.I)
	case DECIMAL:
		f, _ := v.D.Float64()
		return f
	}
	return 0
}
