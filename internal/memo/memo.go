// Package memo provides a per-instance compute-once cache whose reload
// behavior is an injected Strategy.
package memo

import (
	"sync"
	"time"
)

// Strategy decides whether a value computed at computedAt is still valid.
type Strategy interface {
	Valid(computedAt, now time.Time) bool
}

// NoReload keeps the first computed value forever.
type NoReload struct{}

func (NoReload) Valid(time.Time, time.Time) bool { return true }

// AlwaysReload recomputes on every access.
type AlwaysReload struct{}

func (AlwaysReload) Valid(time.Time, time.Time) bool { return false }

// TimeoutReload recomputes once the value is older than Timeout.
type TimeoutReload struct {
	Timeout time.Duration
}

func (s TimeoutReload) Valid(computedAt, now time.Time) bool {
	return now.Sub(computedAt) < s.Timeout
}

// Value memoizes a single T. The zero Value is ready to use and never
// reloads. A Value must not be copied after first use.
type Value[T any] struct {
	mu       sync.Mutex
	strategy Strategy
	now      func() time.Time

	v          T
	computedAt time.Time
	has        bool
	stale      bool
}

// SetStrategy replaces the reload strategy. Must be called before first use.
func (m *Value[T]) SetStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategy = s
}

// SetClock overrides time.Now, for tests.
func (m *Value[T]) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns the cached value, calling compute when there is none or the
// strategy considers it stale.
func (m *Value[T]) Get(compute func() T) T {
	v, _ := m.Load(func() (T, error) { return compute(), nil })
	return v
}

// Load is Get for fallible computations. On error the previous value (if
// any) stays cached and is returned alongside the error.
func (m *Value[T]) Load(compute func() (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if m.has && !m.stale && m.valid(now) {
		return m.v, nil
	}
	v, err := compute()
	if err != nil {
		return m.v, err
	}
	m.v = v
	m.computedAt = now
	m.has, m.stale = true, false
	return v, nil
}

// Peek returns the cached value without computing or checking validity.
func (m *Value[T]) Peek() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.has
}

// Set stores v as freshly computed.
func (m *Value[T]) Set(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v = v
	m.computedAt = m.clock()
	m.has, m.stale = true, false
}

// Invalidate marks the value stale so the next Get recomputes it. The old
// value stays available through Peek.
func (m *Value[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = true
}

func (m *Value[T]) valid(now time.Time) bool {
	if m.strategy == nil {
		return true
	}
	return m.strategy.Valid(m.computedAt, now)
}

func (m *Value[T]) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}
