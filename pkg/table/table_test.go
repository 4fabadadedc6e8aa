package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/table"
	"github.com/kristofer/glox/pkg/value"
)

// key is a tiny stand-in for *object.String so this package's tests
// don't need to import pkg/object.
type key struct {
	hash  uint32
	chars string
}

func newTable() *table.Table[*key] {
	return table.New[*key](func(k *key) uint32 { return k.hash })
}

func TestSetGetRoundTrip(t *testing.T) {
	tb := newTable()
	k := &key{hash: 1, chars: "x"}

	isNew := tb.Set(k, value.Number(9))
	assert.True(t, isNew)

	v, ok := tb.Get(k)
	require.True(t, ok)
	assert.Equal(t, value.Number(9), v)
}

func TestSetOverwriteReturnsFalse(t *testing.T) {
	tb := newTable()
	k := &key{hash: 1, chars: "x"}
	tb.Set(k, value.Number(1))

	isNew := tb.Set(k, value.Number(2))
	assert.False(t, isNew)

	v, _ := tb.Get(k)
	assert.Equal(t, value.Number(2), v)
}

func TestDeleteLeavesTombstonePreservingProbeChain(t *testing.T) {
	tb := newTable()
	// Two keys colliding on the same bucket (same hash) exercise the
	// tombstone-must-not-break-the-probe-chain property from spec §4.6.
	a := &key{hash: 5, chars: "a"}
	b := &key{hash: 5, chars: "b"}
	tb.Set(a, value.Number(1))
	tb.Set(b, value.Number(2))

	assert.True(t, tb.Delete(a))

	v, ok := tb.Get(b)
	require.True(t, ok, "deleting a collided key must not hide keys further down its probe chain")
	assert.Equal(t, value.Number(2), v)

	_, ok = tb.Get(a)
	assert.False(t, ok)
}

func TestGrowPreservesLiveEntriesOnly(t *testing.T) {
	tb := newTable()
	var keys []*key
	for i := 0; i < 20; i++ {
		k := &key{hash: uint32(i), chars: string(rune('a' + i))}
		keys = append(keys, k)
		tb.Set(k, value.Number(float64(i)))
	}
	tb.Delete(keys[0])

	assert.Equal(t, 19, tb.Count())
	for i, k := range keys {
		v, ok := tb.Get(k)
		if i == 0 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, value.Number(float64(i)), v)
	}
}

func TestAddAllCopiesLiveEntries(t *testing.T) {
	src := newTable()
	dst := newTable()
	k1, k2 := &key{hash: 1, chars: "a"}, &key{hash: 2, chars: "b"}
	src.Set(k1, value.Number(1))
	src.Set(k2, value.Number(2))
	src.Delete(k2)

	dst.AddAll(src)

	_, ok := dst.Get(k1)
	assert.True(t, ok)
	_, ok = dst.Get(k2)
	assert.False(t, ok, "tombstoned entries must not be copied by AddAll")
}

func TestFindStringKeyMatchesByHashAndChars(t *testing.T) {
	tb := newTable()
	k := &key{hash: 42, chars: "hello"}
	tb.Set(k, value.Nil)

	found, ok := table.FindStringKey(tb, 42, "hello",
		func(k *key) uint32 { return k.hash },
		func(k *key) string { return k.chars })
	require.True(t, ok)
	assert.Same(t, k, found)

	_, ok = table.FindStringKey(tb, 42, "goodbye",
		func(k *key) uint32 { return k.hash },
		func(k *key) string { return k.chars })
	assert.False(t, ok)
}

func TestFindStringKeyOnEmptyTable(t *testing.T) {
	tb := newTable()
	_, ok := table.FindStringKey(tb, 1, "anything",
		func(k *key) uint32 { return k.hash },
		func(k *key) string { return k.chars })
	assert.False(t, ok)
}
