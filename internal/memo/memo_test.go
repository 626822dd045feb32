package memo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func counter() (func() int, *int) {
	n := 0
	return func() int { n++; return n }, &n
}

func TestValue_ZeroValueNeverReloads(t *testing.T) {
	var v Value[int]
	compute, calls := counter()

	assert.Equal(t, 1, v.Get(compute))
	assert.Equal(t, 1, v.Get(compute))
	assert.Equal(t, 1, *calls)
}

func TestValue_Strategies(t *testing.T) {
	tests := []struct {
		name      string
		strategy  Strategy
		advance   time.Duration
		wantCalls int
	}{
		{name: "no reload", strategy: NoReload{}, advance: time.Hour, wantCalls: 1},
		{name: "always reload", strategy: AlwaysReload{}, advance: 0, wantCalls: 2},
		{name: "timeout not expired", strategy: TimeoutReload{Timeout: time.Minute}, advance: 30 * time.Second, wantCalls: 1},
		{name: "timeout expired", strategy: TimeoutReload{Timeout: time.Minute}, advance: time.Minute, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := &fakeClock{t: time.Unix(1000, 0)}
			var v Value[int]
			v.SetStrategy(tt.strategy)
			v.SetClock(clk.Now)
			compute, calls := counter()

			v.Get(compute)
			clk.Advance(tt.advance)
			got := v.Get(compute)

			assert.Equal(t, tt.wantCalls, *calls)
			assert.Equal(t, tt.wantCalls, got)
		})
	}
}

func TestValue_InvalidateRecomputes(t *testing.T) {
	var v Value[int]
	compute, calls := counter()

	v.Get(compute)
	v.Invalidate()

	old, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, 1, old)

	assert.Equal(t, 2, v.Get(compute))
	assert.Equal(t, 2, *calls)
}

func TestValue_LoadKeepsPreviousOnError(t *testing.T) {
	var v Value[string]
	v.SetStrategy(AlwaysReload{})
	boom := errors.New("boom")

	got, err := v.Load(func() (string, error) { return "first", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = v.Load(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "first", got)

	cur, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, "first", cur)
}

func TestValue_Set(t *testing.T) {
	var v Value[string]
	v.Set("preset")

	got := v.Get(func() string { return "computed" })
	assert.Equal(t, "preset", got)
}
