package items

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentic-research/tagfs/internal/memo"
)

// ScanObserver is notified after every scan attempt.
type ScanObserver interface {
	ObserveScan(d time.Duration, a *Access, err error)
}

// Store publishes the current snapshot. Readers always get one complete
// Access; a rescan builds a new one and swaps it in, the old one is never
// modified. When a snapshot is rebuilt is decided by the memo strategy and
// by explicit Invalidate/Rescan calls.
type Store struct {
	scanner  *Scanner
	current  memo.Value[*Access]
	observer ScanObserver
	log      *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStrategy sets when Current rebuilds the snapshot on access.
func WithStrategy(s memo.Strategy) StoreOption {
	return func(st *Store) { st.current.SetStrategy(s) }
}

// WithObserver registers a scan observer.
func WithObserver(o ScanObserver) StoreOption {
	return func(st *Store) { st.observer = o }
}

// NewStore performs the initial scan. A failing initial scan is fatal.
func NewStore(scanner *Scanner, opts ...StoreOption) (*Store, error) {
	s := &Store{scanner: scanner, log: scanner.logger()}
	for _, o := range opts {
		o(s)
	}
	a, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	s.current.Set(a)
	return s, nil
}

// Current returns the published snapshot, rescanning first if it is stale.
// A failing rescan keeps the previous snapshot.
func (s *Store) Current() *Access {
	a, err := s.current.Load(s.scan)
	if err != nil {
		s.log.Error("rescan failed, keeping previous snapshot", zap.Error(err))
	}
	return a
}

// Invalidate marks the snapshot stale; the next Current call rescans.
func (s *Store) Invalidate() {
	s.current.Invalidate()
}

// Rescan rebuilds and publishes a snapshot immediately.
func (s *Store) Rescan() (*Access, error) {
	s.Invalidate()
	return s.current.Load(s.scan)
}

func (s *Store) scan() (*Access, error) {
	start := time.Now()
	a, err := s.scanner.Scan()
	if s.observer != nil {
		s.observer.ObserveScan(time.Since(start), a, err)
	}
	return a, err
}
