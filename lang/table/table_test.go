package table_test

import (
	"testing"

	"github.com/emberlang/ember/lang/table"
	"github.com/emberlang/ember/lang/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	tb := table.New[value.Value]()
	key := value.NewString("x")

	isNew := tb.Set(key, value.Number(1))
	assert.True(t, isNew)
	assert.Equal(t, 1, tb.Len())

	v, ok := tb.Get(key)
	require.True(t, ok)
	assert.Equal(t, value.Number(1), v)

	isNew = tb.Set(key, value.Number(2))
	assert.False(t, isNew)
	v, _ = tb.Get(key)
	assert.Equal(t, value.Number(2), v)

	assert.True(t, tb.Delete(key))
	assert.Equal(t, 0, tb.Len())
	_, ok = tb.Get(key)
	assert.False(t, ok)
}

func TestDeleteThenReinsertReusesTombstone(t *testing.T) {
	tb := table.New[value.Value]()
	a := value.NewString("a")
	b := value.NewString("b")

	tb.Set(a, value.Number(1))
	tb.Set(b, value.Number(2))
	tb.Delete(a)

	assert.True(t, tb.Set(a, value.Number(3)))
	v, ok := tb.Get(a)
	require.True(t, ok)
	assert.Equal(t, value.Number(3), v)
	v, ok = tb.Get(b)
	require.True(t, ok)
	assert.Equal(t, value.Number(2), v)
}

func TestGrowsPastInitialCapacity(t *testing.T) {
	tb := table.New[value.Value]()
	keys := make([]*value.ObjString, 0, 64)
	for i := 0; i < 64; i++ {
		k := value.NewString(string(rune('a' + i%26)) + string(rune(i)))
		keys = append(keys, k)
		tb.Set(k, value.Number(float64(i)))
	}
	assert.Equal(t, 64, tb.Len())
	for i, k := range keys {
		v, ok := tb.Get(k)
		require.True(t, ok)
		assert.Equal(t, value.Number(float64(i)), v)
	}
}

func TestFindStringLocatesInternedCopy(t *testing.T) {
	tb := table.New[*value.ObjString]()
	hi := value.NewString("hi")
	tb.Set(hi, hi)

	found := table.FindString(tb, "hi", value.HashString("hi"))
	assert.Same(t, hi, found)

	assert.Nil(t, table.FindString(tb, "missing", value.HashString("missing")))
}

func TestSweepKeysDropsUnmarked(t *testing.T) {
	tb := table.New[*value.ObjString]()
	keep := value.NewString("keep")
	drop := value.NewString("drop")
	tb.Set(keep, keep)
	tb.Set(drop, drop)

	table.SweepKeys(tb, func(s *value.ObjString) bool { return s == keep })

	assert.Equal(t, 1, tb.Len())
	assert.NotNil(t, table.FindString(tb, "keep", value.HashString("keep")))
	assert.Nil(t, table.FindString(tb, "drop", value.HashString("drop")))
}
