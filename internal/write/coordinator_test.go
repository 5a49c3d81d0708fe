package write

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/commitlog"
	"github.com/dreamware/nsdb/internal/metadata"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
	"github.com/dreamware/nsdb/internal/shardcache"
	"github.com/dreamware/nsdb/internal/stmt"
)

func newTestCoordinator(t *testing.T) *Coordinator {
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

	return &Coordinator{
		NodeID:               "self",
		DefaultShardInterval: 1000,
		Schemas:              schemas,
		Locations:            locations,
		Shards:               shardcache.New(""),
		Log:                  commitlog.Noop{},
	}
}

func peopleRecord(ts int64, name string) scalar.Record {
	rec := scalar.New(ts, scalar.BigInt(1))
	rec.Dimensions["name"] = scalar.Str(name)
	rec.Tags["surname"] = scalar.Str("Doe")
	return rec
}

func TestMapInputWritesLocalShardAndCommitLog(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	err := c.MapInput(ctx, "db", "ns", "people", peopleRecord(2, "John"))
	require.NoError(t, err)

	sch, ok := c.Schemas.Get("people")
	require.True(t, ok)

	loc, err := c.Locations.Locate("people", 2, c.DefaultShardInterval)
	require.NoError(t, err)

	idx, err := c.Shards.Get("people", loc.BinIndex)
	require.NoError(t, err)

	recs, err := idx.All(sch)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestMapInputRejectsIncompatibleSchema(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.MapInput(ctx, "db", "ns", "people", peopleRecord(2, "John")))

	badRec := scalar.New(4, scalar.Str("not-a-number"))
	err := c.MapInput(ctx, "db", "ns", "people", badRec)
	require.Error(t, err)
}

func TestDropMetricThenRewriteRecreatesSchema(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.MapInput(ctx, "db", "ns", "people", peopleRecord(2, "John")))
	require.NoError(t, c.DropMetric(ctx, "ns", "people"))
	require.NoError(t, c.DropMetric(ctx, "ns", "people")) // idempotent

	_, ok := c.Schemas.Get("people")
	require.False(t, ok)

	require.NoError(t, c.MapInput(ctx, "db", "ns", "people", peopleRecord(6, "Bill")))
	_, ok = c.Schemas.Get("people")
	require.True(t, ok)
}

func TestExecuteDeleteStatementRemovesMatchingRecords(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.MapInput(ctx, "db", "ns", "people", peopleRecord(2, "John")))
	require.NoError(t, c.MapInput(ctx, "db", "ns", "people", peopleRecord(4, "Bill")))

	err := c.ExecuteDeleteStatement(ctx, "ns", stmt.DeleteSQLStatement{
		Metric:    "people",
		Condition: predicate.Comparison{Field: "name", Op: predicate.Eq, Value: scalar.Str("John")},
	})
	require.NoError(t, err)

	sch, _ := c.Schemas.Get("people")
	loc, err := c.Locations.Locate("people", 2, c.DefaultShardInterval)
	require.NoError(t, err)
	idx, err := c.Shards.Get("people", loc.BinIndex)
	require.NoError(t, err)
	recs, err := idx.All(sch)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestExecuteDeleteStatementOnUnknownMetricFails(t *testing.T) {
	c := newTestCoordinator(t)
	err := c.ExecuteDeleteStatement(context.Background(), "ns", stmt.DeleteSQLStatement{Metric: "nonexisting"})
	require.Error(t, err)
}
