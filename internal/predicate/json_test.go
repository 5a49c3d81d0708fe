package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/scalar"
)

func TestMarshalUnmarshalRoundTripsEachVariant(t *testing.T) {
	cases := []Predicate{
		MatchAll{},
		Comparison{Field: "name", Op: Eq, Value: scalar.Str("John")},
		Range{Field: "timestamp", Lo: scalar.BigInt(0), Hi: scalar.BigInt(100)},
		Not{Term: Comparison{Field: "age", Op: Gt, Value: scalar.Int(18)}},
		And{Terms: []Predicate{
			Comparison{Field: "name", Op: Eq, Value: scalar.Str("John")},
			Range{Field: "timestamp", Lo: scalar.BigInt(0), Hi: scalar.BigInt(100)},
		}},
		Or{Terms: []Predicate{
			Comparison{Field: "name", Op: Eq, Value: scalar.Str("John")},
			Comparison{Field: "name", Op: Eq, Value: scalar.Str("Frank")},
		}},
	}

	for _, want := range cases {
		data, err := Marshal(want)
		require.NoError(t, err)
		got, err := Unmarshal(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestUnmarshalNilPredicateYieldsNil(t *testing.T) {
	got, err := Unmarshal(nil)
	require.NoError(t, err)
	require.Nil(t, got)

	data, err := Marshal(nil)
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
	got, err = Unmarshal(data)
	require.NoError(t, err)
	require.Nil(t, got)
}
