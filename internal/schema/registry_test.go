package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/nsdb/internal/errs"
	"github.com/dreamware/nsdb/internal/scalar"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	reg, err := NewRegistry(store)
	require.NoError(t, err)
	return reg
}

func TestRegistryUpdateCreatesSchemaOnFirstWrite(t *testing.T) {
	reg := newTestRegistry(t)

	rec := scalar.New(10, scalar.BigInt(1)).WithDimension("name", scalar.Str("John"))
	sch, err := reg.Update("people", New("people", rec))
	require.NoError(t, err)
	assert.Equal(t, "people", sch.Metric)
	assert.Contains(t, sch.Fields, "name")
	assert.Contains(t, sch.Fields, "value")
	assert.Contains(t, sch.Fields, "timestamp")

	got, ok := reg.Get("people")
	require.True(t, ok)
	assert.Equal(t, sch.Fields, got.Fields)
}

// TestRegistryUpdateIsMonotoneAdditive verifies spec.md §8's "Schema
// monotone additivity" invariant: every successful update yields a
// superset field set, with unchanged types on shared fields.
func TestRegistryUpdateIsMonotoneAdditive(t *testing.T) {
	reg := newTestRegistry(t)

	first := scalar.New(10, scalar.BigInt(1)).WithDimension("name", scalar.Str("John"))
	before, err := reg.Update("people", New("people", first))
	require.NoError(t, err)

	second := scalar.New(20, scalar.BigInt(2)).
		WithDimension("name", scalar.Str("Bill")).
		WithTag("surname", scalar.Str("Doe"))
	after, err := reg.Update("people", New("people", second))
	require.NoError(t, err)

	for name, f := range before.Fields {
		got, ok := after.Fields[name]
		require.True(t, ok, "field %q dropped", name)
		assert.Equal(t, f.Kind, got.Kind)
	}
	assert.Contains(t, after.Fields, "surname")
}

func TestRegistryUpdateRejectsIncompatibleKind(t *testing.T) {
	reg := newTestRegistry(t)

	first := scalar.New(10, scalar.BigInt(1)).WithDimension("name", scalar.Str("John"))
	_, err := reg.Update("people", New("people", first))
	require.NoError(t, err)

	conflicting := scalar.New(20, scalar.BigInt(2)).WithDimension("name", scalar.Int(5))
	_, err = reg.Update("people", New("people", conflicting))
	require.Error(t, err)

	var conflict *errs.SchemaConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "people", conflict.Metric)
}

func TestRegistryDeleteThenRecreate(t *testing.T) {
	reg := newTestRegistry(t)

	rec := scalar.New(10, scalar.BigInt(1))
	_, err := reg.Update("people", New("people", rec))
	require.NoError(t, err)

	require.NoError(t, reg.Delete("people"))
	_, ok := reg.Get("people")
	assert.False(t, ok)

	// Idempotent drop (spec.md §8): dropping twice is an error on the
	// second call (metric already gone) but writes after a drop recreate
	// the schema cleanly.
	err = reg.Delete("people")
	assert.Error(t, err)

	_, err = reg.Update("people", New("people", rec))
	require.NoError(t, err)
	_, ok = reg.Get("people")
	assert.True(t, ok)
}

func TestRegistryDeleteAll(t *testing.T) {
	reg := newTestRegistry(t)

	rec := scalar.New(10, scalar.BigInt(1))
	_, err := reg.Update("people", New("people", rec))
	require.NoError(t, err)
	_, err = reg.Update("events", New("events", rec))
	require.NoError(t, err)

	require.NoError(t, reg.DeleteAll())
	_, ok := reg.Get("people")
	assert.False(t, ok)
	_, ok = reg.Get("events")
	assert.False(t, ok)
}
