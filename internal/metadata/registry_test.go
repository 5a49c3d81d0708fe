package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, members []string) *Registry {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg, err := NewRegistry(store, func() []string { return members }, nil)
	require.NoError(t, err)
	return reg
}

func TestLocateCreatesBinOnFirstAccess(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1", "node-2", "node-3"})

	loc, err := reg.Locate("people", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), loc.LowerTS)
	assert.Equal(t, int64(10), loc.UpperTS)
	assert.NotEmpty(t, loc.NodeID)
}

// TestLocateBoundaryBelongsToUpperBin verifies spec.md §8: "timestamp
// equal to a bin boundary belongs to the upper bin ([lo, hi))".
func TestLocateBoundaryBelongsToUpperBin(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1"})

	below, err := reg.Locate("people", 9, 10)
	require.NoError(t, err)
	atBoundary, err := reg.Locate("people", 10, 10)
	require.NoError(t, err)

	assert.NotEqual(t, below.BinIndex, atBoundary.BinIndex)
	assert.Equal(t, int64(10), atBoundary.LowerTS)
	assert.Equal(t, int64(20), atBoundary.UpperTS)
}

func TestPlacementIsDeterministic(t *testing.T) {
	members := []string{"node-1", "node-2", "node-3"}
	reg1 := newTestRegistry(t, members)
	reg2 := newTestRegistry(t, members)

	loc1, err := reg1.Locate("people", 100, 10)
	require.NoError(t, err)
	loc2, err := reg2.Locate("people", 100, 10)
	require.NoError(t, err)

	assert.Equal(t, loc1.NodeID, loc2.NodeID)
}

// TestPartitionCover verifies spec.md §8: locations cover every bin
// containing a written record and are pairwise non-overlapping.
func TestPartitionCover(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1"})

	timestamps := []int64{2, 4, 15, 23, 31}
	for _, ts := range timestamps {
		_, err := reg.Locate("people", ts, 10)
		require.NoError(t, err)
	}

	locs := reg.LocationsFor("people")
	for _, ts := range timestamps {
		found := false
		for _, loc := range locs {
			if loc.Contains(ts) {
				found = true
				break
			}
		}
		assert.True(t, found, "no location covers ts=%d", ts)
	}
	for i := range locs {
		for j := range locs {
			if i == j {
				continue
			}
			overlap := locs[i].LowerTS < locs[j].UpperTS && locs[j].LowerTS < locs[i].UpperTS
			assert.False(t, overlap, "locations %d and %d overlap", locs[i].BinIndex, locs[j].BinIndex)
		}
	}
}

func TestLocationsOverlapping(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1"})
	for _, ts := range []int64{2, 4, 15, 100} {
		_, err := reg.Locate("people", ts, 10)
		require.NoError(t, err)
	}

	got := reg.LocationsOverlapping("people", 0, 20)
	assert.Len(t, got, 2) // bins [0,10) and [10,20)
}

func TestShardIntervalIsFrozenAfterFirstWrite(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1"})
	_, err := reg.PutMetricInfo("people", 10)
	require.NoError(t, err)

	_, err = reg.PutMetricInfo("people", 20)
	assert.Error(t, err)

	interval, ok := reg.ShardInterval("people")
	require.True(t, ok)
	assert.Equal(t, int64(10), interval)
}

func TestApplyRemoteLocationResolvesConflictByMinNodeID(t *testing.T) {
	reg := newTestRegistry(t, []string{"node-1"})
	loc, err := reg.Locate("people", 5, 10)
	require.NoError(t, err)

	worse := loc
	worse.NodeID = loc.NodeID + "-zzz"
	reg.ApplyRemoteLocation(worse)
	got := reg.LocationsFor("people")[0]
	assert.Equal(t, loc.NodeID, got.NodeID, "should keep lexicographically smaller node id")

	better := loc
	better.NodeID = "" // lexicographically smallest possible
	reg.ApplyRemoteLocation(better)
	got = reg.LocationsFor("people")[0]
	assert.Equal(t, "", got.NodeID)
}

func TestRegistryRebuildsFromStoreOnRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "metadata.db")

	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	reg, err := NewRegistry(store, func() []string { return []string{"node-1"} }, nil)
	require.NoError(t, err)
	_, err = reg.Locate("people", 5, 10)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := OpenStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()
	reg2, err := NewRegistry(store2, func() []string { return []string{"node-1"} }, nil)
	require.NoError(t, err)

	assert.Len(t, reg2.LocationsFor("people"), 1)
	interval, ok := reg2.ShardInterval("people")
	require.True(t, ok)
	assert.Equal(t, int64(10), interval)
}
