package read

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/commitlog"
	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardcache"
	"github.com/dreamware/nsdb/internal/stmt"
	"github.com/dreamware/nsdb/internal/write"
)

type testSystem struct {
	writeC *write.Coordinator
	readC  *Coordinator
}

func newTestSystem(t *testing.T) *testSystem {
	t.Helper()

	schemaStore, err := schema.OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = schemaStore.Close() })
	schemas, err := schema.NewRegistry(schemaStore)
	require.NoError(t, err)

	metaStore, err := metadata.OpenStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = metaStore.Close() })
	locations, err := metadata.NewRegistry(metaStore, func() []string { return []string{"self"} }, nil)
	require.NoError(t, err)

	shards := shardcache.New("")

	return &testSystem{
		writeC: &write.Coordinator{
			NodeID:               "self",
			DefaultShardInterval: 1000,
			Schemas:              schemas,
			Locations:            locations,
			Shards:               shards,
			Log:                  commitlog.Noop{},
		},
		readC: &Coordinator{
			NodeID:      "self",
			Schemas:     schemas,
			Locations:   locations,
			Shards:      shards,
			Parallelism: Parallelism{Initial: 4},
		},
	}
}

func seedPeople(t *testing.T, sys *testSystem) {
	t.Helper()
	ctx := context.Background()
	data := []struct {
		ts   int64
		name string
	}{
		{2, "John"}, {4, "John"}, {6, "Bill"}, {8, "Frank"}, {10, "Frank"},
	}
	for _, d := range data {
		rec := scalar.New(d.ts, scalar.BigInt(1))
		rec.Dimensions["name"] = scalar.Str(d.name)
		rec.Tags["surname"] = scalar.Str("Doe")
		require.NoError(t, sys.writeC.MapInput(ctx, "db", "ns", "people", rec))
	}
}

func TestSelectAllReturnsFiveRows(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	limit := 5
	recs, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric: "people",
		Fields: stmt.Projection{AllFields: true},
		Limit:  &limit,
	})
	require.NoError(t, err)
	require.Len(t, recs, 5)
}

func TestSelectWithTimeRangeReturnsTwoRows(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	cond := predicate.And{Terms: []predicate.Predicate{
		predicate.Comparison{Field: "timestamp", Op: predicate.Gte, Value: scalar.BigInt(2)},
		predicate.Comparison{Field: "timestamp", Op: predicate.Lte, Value: scalar.BigInt(4)},
	}}
	recs, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric:    "people",
		Fields:    stmt.Projection{Fields: []stmt.FieldSelection{{Name: "name"}}},
		Condition: cond,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestSelectWithLimitAndLowerBoundReturnsFrank(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	limit := 4
	cond := predicate.Comparison{Field: "timestamp", Op: predicate.Gte, Value: scalar.BigInt(10)}
	recs, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric:    "people",
		Fields:    stmt.Projection{Fields: []stmt.FieldSelection{{Name: "name"}}},
		Condition: cond,
		Limit:     &limit,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Frank", recs[0].Dimensions["name"].S)
	require.Equal(t, int64(10), recs[0].Timestamp)
}

func TestSelectWithNotOnTimestampReturnsFourRows(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	limit := 4
	cond := predicate.Not{Term: predicate.Comparison{Field: "timestamp", Op: predicate.Gte, Value: scalar.BigInt(10)}}
	recs, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric:    "people",
		Fields:    stmt.Projection{Fields: []stmt.FieldSelection{{Name: "name"}}},
		Condition: cond,
		Limit:     &limit,
	})
	require.NoError(t, err)
	require.Len(t, recs, 4)
}

func TestSelectSumGroupByNameReturnsThreeGroups(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	cond := predicate.Comparison{Field: "timestamp", Op: predicate.Gte, Value: scalar.BigInt(2)}
	recs, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric:    "people",
		Fields:    stmt.Projection{Fields: []stmt.FieldSelection{{Name: "value", Aggregation: "sum"}}},
		Condition: cond,
		GroupBy:   "name",
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	sums := map[string]int64{}
	for _, r := range recs {
		sums[r.Dimensions["name"].S] = r.Value.I
	}
	require.Equal(t, int64(2), sums["John"])
	require.Equal(t, int64(1), sums["Bill"])
	require.Equal(t, int64(2), sums["Frank"])
}

func TestSelectNonAggregatedGroupByIsRejected(t *testing.T) {
	sys := newTestSystem(t)
	seedPeople(t, sys)

	cond := predicate.Comparison{Field: "timestamp", Op: predicate.Gte, Value: scalar.BigInt(2)}
	_, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric:    "people",
		Fields:    stmt.Projection{Fields: []stmt.FieldSelection{{Name: "creationDate"}}},
		Condition: cond,
		GroupBy:   "name",
	})
	require.Error(t, err)
	var invalid *errs.InvalidStatement
	require.ErrorAs(t, err, &invalid)
}

func TestSelectOnNonexistingMetricReturnsMetricNotFound(t *testing.T) {
	sys := newTestSystem(t)

	limit := 5
	_, err := sys.readC.ExecuteStatement(context.Background(), stmt.SelectSQLStatement{
		Metric: "nonexisting",
		Fields: stmt.Projection{AllFields: true},
		Limit:  &limit,
	})
	require.Error(t, err)
	var notFound *errs.MetricNotFound
	require.ErrorAs(t, err, &notFound)
}
