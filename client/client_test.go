package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/config"
	"github.com/dreamware/nsdb/internal/endpoint"
	"github.com/dreamware/nsdb/internal/guardian"
	"github.com/dreamware/nsdb/internal/predicate"
	"github.com/dreamware/nsdb/internal/scalar"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		NodeID:    "self",
		Index:     config.IndexConfig{BasePath: t.TempDir()},
		Sharding:  config.ShardingConfig{IntervalMillis: 1000},
		Read:      config.ReadConfig{ParallelismInitial: 2, ParallelismLower: 1, ParallelismUpper: 4},
		CommitLog: config.CommitLogConfig{Enabled: true, Path: t.TempDir()},
	}
	g := guardian.New(cfg, nil, func(string) string { return "" }, nil)
	t.Cleanup(func() { _ = g.Close() })
	srv := httptest.NewServer(endpoint.New(g, nil).Mux())
	t.Cleanup(srv.Close)
	return srv
}

func TestWriteThenSelectRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	err := c.Write("db", "ns", "people").
		At(2).
		Value(scalar.BigInt(1)).
		Dimension("name", scalar.Str("John")).
		Send(ctx)
	require.NoError(t, err)

	recs, err := c.Select("db", "ns", "people").
		AllFields().
		Limit(5).
		Send(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "John", recs[0].Dimensions["name"].S)
}

func TestSelectWithWhereFiltersRecords(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Write("db", "ns", "people").At(1).Value(scalar.BigInt(1)).
		Dimension("name", scalar.Str("John")).Send(ctx))
	require.NoError(t, c.Write("db", "ns", "people").At(2).Value(scalar.BigInt(1)).
		Dimension("name", scalar.Str("Frank")).Send(ctx))

	recs, err := c.Select("db", "ns", "people").
		AllFields().
		Where(predicate.Comparison{Field: "name", Op: predicate.Eq, Value: scalar.Str("Frank")}).
		Limit(5).
		Send(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Frank", recs[0].Dimensions["name"].S)
}
