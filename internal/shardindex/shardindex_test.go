package shardindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
	"github.com/dreamware/nsdb/internal/schema"
)

func peopleSchema() schema.Schema {
	return schema.Schema{
		Metric: "people",
		Fields: map[string]scalar.SchemaField{
			"timestamp": {Name: "timestamp", Class: scalar.ClassTimestamp, Kind: scalar.BIGINT},
			"value":     {Name: "value", Class: scalar.ClassValue, Kind: scalar.BIGINT},
			"city":      {Name: "city", Class: scalar.ClassDimension, Kind: scalar.VARCHAR},
			"age":       {Name: "age", Class: scalar.ClassDimension, Kind: scalar.INT},
		},
	}
}

func newTestIndex(t *testing.T) *ShardIndex {
	t.Helper()
	idx, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func writeOne(t *testing.T, idx *ShardIndex, sch schema.Schema, ts int64, city string, age int64) {
	t.Helper()
	rec := scalar.New(ts, scalar.BigInt(1))
	rec.Dimensions["city"] = scalar.Str(city)
	rec.Dimensions["age"] = scalar.Int(age)
	token := idx.AcquireWriter()
	defer token.Release()
	require.NoError(t, idx.Write(token, sch, rec))
}

func TestWriteThenAllRoundTrips(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Oakland", 45)

	recs, err := idx.All(sch)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	count, err := idx.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestWriteIsIdempotentOnIdenticalRecord(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 100, "Boston", 30)

	count, err := idx.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestQueryFiltersByTextEquality(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Oakland", 45)

	pred := predicate.Comparison{Field: "city", Op: predicate.Eq, Value: scalar.Str("Boston")}
	recs, err := idx.Query(sch, pred, Projection{AllFields: true}, 10, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, int64(100), recs[0].Timestamp)
}

func TestQueryFiltersByNumericRange(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Oakland", 45)
	writeOne(t, idx, sch, 300, "Denver", 60)

	pred := predicate.Range{Field: "age", Lo: scalar.Int(40), Hi: scalar.Int(50)}
	recs, err := idx.Query(sch, pred, Projection{AllFields: true}, 10, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Oakland", recs[0].Dimensions["city"].S)
}

func TestQueryLimitZeroReturnsNoRows(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)

	recs, err := idx.Query(sch, predicate.MatchAll{}, Projection{AllFields: true}, 0, nil)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestCountQueryRespectsLimit(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Oakland", 45)
	writeOne(t, idx, sch, 300, "Denver", 60)

	n, err := idx.CountQuery(sch, predicate.MatchAll{}, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestDeleteByTimestampRemovesMatchingDocument(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Oakland", 45)

	token := idx.AcquireWriter()
	require.NoError(t, idx.DeleteByTimestamp(token, sch, 100))
	token.Release()

	recs, err := idx.All(sch)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, int64(200), recs[0].Timestamp)
}

func TestDeleteByQueryRemovesMatchingSet(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Boston", 45)
	writeOne(t, idx, sch, 300, "Denver", 60)

	token := idx.AcquireWriter()
	pred := predicate.Comparison{Field: "city", Op: predicate.Eq, Value: scalar.Str("Boston")}
	require.NoError(t, idx.DeleteByQuery(token, sch, pred))
	token.Release()

	count, err := idx.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestWriteWithoutTokenIsRejected(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	rec := scalar.New(100, scalar.BigInt(1))
	err := idx.Write(nil, sch, rec)
	require.Error(t, err)
}

func TestGroupedAggregationCountsPerGroup(t *testing.T) {
	idx := newTestIndex(t)
	sch := peopleSchema()
	writeOne(t, idx, sch, 100, "Boston", 30)
	writeOne(t, idx, sch, 200, "Boston", 45)
	writeOne(t, idx, sch, 300, "Denver", 60)

	recs, err := idx.GroupedAggregation(sch, predicate.MatchAll{}, "city", AggCount, nil, nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	counts := map[string]int64{}
	for _, r := range recs {
		counts[r.Dimensions["city"].S] = r.Value.I
	}
	require.Equal(t, int64(2), counts["Boston"])
	require.Equal(t, int64(1), counts["Denver"])
}
