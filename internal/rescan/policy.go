// Package rescan decides when the items directory is scanned again. A
// Policy contributes a memo strategy (checked lazily on access) and a
// background trigger that invalidates the current snapshot.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/tagfs/internal/memo"
)

// ErrUnknownPolicy is returned by New for an unrecognized name.
var ErrUnknownPolicy = errors.New("unknown rescan policy")

// Policy names accepted by New.
const (
	NameOnce     = "once"
	NameTimeout  = "timeout"
	NameInterval = "interval"
	NameSignal   = "signal"
	NameWatch    = "watch"
)

// Policy decides when a snapshot goes stale.
type Policy interface {
	// Strategy is consulted whenever the snapshot is read.
	Strategy() memo.Strategy
	// Run triggers invalidate until ctx is done. Policies without a
	// background trigger just wait.
	Run(ctx context.Context, invalidate func()) error
}

// New builds the named policy.
func New(name string, interval time.Duration, root string, opts ...WatchOption) (Policy, error) {
	switch name {
	case "", NameOnce:
		return Once{}, nil
	case NameTimeout:
		return Timeout{After: interval}, nil
	case NameInterval:
		return Interval{Every: interval}, nil
	case NameSignal:
		return Signal{}, nil
	case NameWatch:
		return NewWatch(root, opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// Once scans at startup only.
type Once struct{}

func (Once) Strategy() memo.Strategy { return memo.NoReload{} }

func (Once) Run(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

// Timeout rescans on the first access after the snapshot is older than
// After.
type Timeout struct {
	After time.Duration
}

func (p Timeout) Strategy() memo.Strategy { return memo.TimeoutReload{Timeout: p.After} }

func (Timeout) Run(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

// Interval invalidates the snapshot on a fixed period.
type Interval struct {
	Every time.Duration
}

func (Interval) Strategy() memo.Strategy { return memo.NoReload{} }

func (p Interval) Run(ctx context.Context, invalidate func()) error {
	if p.Every <= 0 {
		return fmt.Errorf("rescan interval must be positive, got %s", p.Every)
	}
	ticker := time.NewTicker(p.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			invalidate()
		}
	}
}

// Signal invalidates the snapshot whenever the process receives one of
// Signals (SIGHUP when empty).
type Signal struct {
	Signals []os.Signal
}

func (Signal) Strategy() memo.Strategy { return memo.NoReload{} }

func (p Signal) Run(ctx context.Context, invalidate func()) error {
	sigs := p.Signals
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGHUP}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			invalidate()
		}
	}
}
