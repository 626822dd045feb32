package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransientDict_GetAfterSet(t *testing.T) {
	d := New[string, int](3)
	d.Set("a", 1)
	v, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	d.Set("a", 2)
	v, _ = d.Get("a")
	assert.Equal(t, 2, v)

	_, ok = d.Get("missing")
	assert.False(t, ok)
}

func TestTransientDict_CapacityOne(t *testing.T) {
	d := New[string, string](1)
	d.Set("1", "1")
	d.Set("2", "2")
	d.Set("3", "3")

	assert.False(t, d.Contains("1"))
	assert.True(t, d.Contains("3"))
	assert.Equal(t, 1, d.Len())
}

func TestTransientDict_OvershootThenCleanup(t *testing.T) {
	d := New[int, int](4)
	for i := 0; i < 4; i++ {
		d.Set(i, i)
	}
	assert.Equal(t, 4, d.Len())

	// Between cleanups the dict grows past its capacity.
	for i := 4; i < 7; i++ {
		d.Set(i, i)
	}
	assert.Equal(t, 7, d.Len())

	d.Set(7, 7)
	assert.LessOrEqual(t, d.Len(), 4)
}

func TestTransientDict_TouchedEntriesSurvive(t *testing.T) {
	const capacity = 5
	d := New[string, int](capacity)
	var evicted []string
	d.OnEvict(func(k string) { evicted = append(evicted, k) })

	for i := 0; i < capacity; i++ {
		d.Set(fmt.Sprintf("old%d", i), i)
	}
	for i := 0; i < capacity-1; i++ {
		d.Set(fmt.Sprintf("new%d", i), i)
	}
	_, _ = d.Get("old0")
	_, _ = d.Get("old3")
	d.Set("new4", 4)

	assert.Equal(t, capacity, d.Len())
	assert.ElementsMatch(t, []string{"old1", "old2", "old4", "new0", "new1"}, evicted)
	assert.True(t, d.Contains("old0"))
	assert.True(t, d.Contains("old3"))
	assert.True(t, d.Contains("new4"))
}

func TestTransientDict_ContainsDoesNotTouch(t *testing.T) {
	d := New[string, int](2)
	d.Set("a", 1)
	d.Set("b", 2) // cleanup, nothing to drop
	assert.True(t, d.Contains("a"))
	d.Set("c", 3)
	d.Set("d", 4) // cleanup drops a and b

	assert.False(t, d.Contains("a"))
	assert.False(t, d.Contains("b"))
}

func TestTransientDict_Clear(t *testing.T) {
	d := New[string, int](2)
	d.Set("a", 1)
	d.Clear()
	assert.Zero(t, d.Len())
	assert.Equal(t, 2, d.Cap())
}
