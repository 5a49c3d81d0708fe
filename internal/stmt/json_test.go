package stmt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
)

func TestSelectSQLStatementJSONRoundTrips(t *testing.T) {
	limit := 5
	want := SelectSQLStatement{
		Namespace: "ns",
		Metric:    "people",
		Fields:    Projection{Fields: []FieldSelection{{Name: "value", Aggregation: "sum"}}},
		Condition: predicate.And{Terms: []predicate.Predicate{
			predicate.Comparison{Field: "name", Op: predicate.Eq, Value: scalar.Str("John")},
		}},
		GroupBy: "name",
		Order:   &OrderBy{Field: "name"},
		Limit:   &limit,
	}

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got SelectSQLStatement
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want, got)
}

func TestDeleteSQLStatementJSONRoundTripsWithNilCondition(t *testing.T) {
	want := DeleteSQLStatement{Namespace: "ns", Metric: "people"}

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got DeleteSQLStatement
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, want.Namespace, got.Namespace)
	require.Equal(t, want.Metric, got.Metric)
	require.Nil(t, got.Condition)
}
