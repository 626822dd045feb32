package rescan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagfs/internal/memo"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		want     Policy
		strategy memo.Strategy
	}{
		{"", Once{}, memo.NoReload{}},
		{NameOnce, Once{}, memo.NoReload{}},
		{NameTimeout, Timeout{After: time.Minute}, memo.TimeoutReload{Timeout: time.Minute}},
		{NameInterval, Interval{Every: time.Minute}, memo.NoReload{}},
		{NameSignal, Signal{}, memo.NoReload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.name, time.Minute, "/items")
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.strategy, p.Strategy())
		})
	}

	p, err := New(NameWatch, time.Minute, "/items/")
	require.NoError(t, err)
	assert.Equal(t, "/items", p.(Watch).Root)

	_, err = New("hourly", time.Minute, "/items")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

// run starts p in the background and counts invalidations.
func run(t *testing.T, p Policy) *atomic.Int32 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var n atomic.Int32
	go func() { done <- p.Run(ctx, func() { n.Add(1) }) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return &n
}

func TestOnceAndTimeout_ReturnOnCancel(t *testing.T) {
	for _, p := range []Policy{Once{}, Timeout{After: time.Millisecond}} {
		n := run(t, p)
		time.Sleep(10 * time.Millisecond)
		assert.Zero(t, n.Load())
	}
}

func TestInterval(t *testing.T) {
	n := run(t, Interval{Every: 5 * time.Millisecond})
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestInterval_RejectsNonPositive(t *testing.T) {
	err := Interval{}.Run(context.Background(), func() {})
	assert.Error(t, err)
}

func TestSignal(t *testing.T) {
	// Keep SIGHUP from terminating the test binary before Run subscribes.
	guard := make(chan os.Signal, 8)
	signal.Notify(guard, syscall.SIGHUP)
	defer signal.Stop(guard)

	n := run(t, Signal{})
	assert.Eventually(t, func() bool {
		_ = syscall.Kill(os.Getpid(), syscall.SIGHUP)
		return n.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatch_InvalidatesOnTagFileChange(t *testing.T) {
	root := t.TempDir()
	item := filepath.Join(root, "item")
	require.NoError(t, os.MkdirAll(item, 0o755))

	n := run(t, NewWatch(root, WithDebounce(10*time.Millisecond)))
	i := 0
	assert.Eventually(t, func() bool {
		i++
		_ = os.WriteFile(filepath.Join(item, ".tag"), []byte{byte('a' + i%26)}, 0o644)
		return n.Load() >= 1
	}, 2*time.Second, 50*time.Millisecond)
}

func TestWatch_NewItemsAreWatched(t *testing.T) {
	root := t.TempDir()
	n := run(t, NewWatch(root, WithDebounce(10*time.Millisecond)))

	// Creating an item directory changes the root.
	i := 0
	assert.Eventually(t, func() bool {
		i++
		_ = os.MkdirAll(filepath.Join(root, fmt.Sprintf("late%d", i)), 0o755)
		return n.Load() >= 1
	}, 2*time.Second, 50*time.Millisecond)
}

func TestWatch_MissingRoot(t *testing.T) {
	err := NewWatch(filepath.Join(t.TempDir(), "missing")).Run(context.Background(), func() {})
	assert.Error(t, err)
}
