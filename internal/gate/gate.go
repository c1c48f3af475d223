// Package gate guarantees that at most one decision cycle runs at a time.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Gate is a process-wide busy flag. TryEnter and Leave are safe for
// concurrent use.
type Gate struct {
	busy atomic.Bool
}

// TryEnter atomically moves the gate from idle to busy. It returns false
// when a cycle is already running.
func (g *Gate) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave marks the gate idle. It must be called exactly once per successful
// TryEnter, on every exit path of the cycle.
func (g *Gate) Leave() {
	g.busy.Store(false)
}

// Busy reports whether a cycle currently holds the gate.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// Lease extends the gate across bot replicas with a distributed lock.
type Lease struct {
	locks domain.LockManager
	key   string
	ttl   time.Duration
}

// NewLease creates a Lease on key. The ttl must outlive the longest cycle;
// it only matters when a holder dies without releasing.
func NewLease(locks domain.LockManager, key string, ttl time.Duration) *Lease {
	return &Lease{locks: locks, key: key, ttl: ttl}
}

// Guard combines the local gate with an optional lease. The local gate is
// always taken first so replicas never contend for the lock from inside
// one process.
type Guard struct {
	gate  *Gate
	lease *Lease
}

// NewGuard creates a Guard. lease may be nil.
func NewGuard(g *Gate, lease *Lease) *Guard {
	return &Guard{gate: g, lease: lease}
}

// Gate returns the local gate.
func (g *Guard) Gate() *Gate {
	return g.gate
}

// Enter takes the gate and, if configured, the lease. On success it returns
// a release func that frees both and is safe to call more than once. When
// the gate or lease is held elsewhere the error wraps domain.ErrGateBusy.
func (g *Guard) Enter(ctx context.Context) (func(), error) {
	if !g.gate.TryEnter() {
		return nil, domain.ErrGateBusy
	}
	if g.lease == nil {
		return onceRelease(g.gate.Leave), nil
	}

	unlock, err := g.lease.locks.Acquire(ctx, g.lease.key, g.lease.ttl)
	if err != nil {
		g.gate.Leave()
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("%w: lease %s held by another replica", domain.ErrGateBusy, g.lease.key)
		}
		return nil, fmt.Errorf("gate: acquire lease: %w", err)
	}
	return onceRelease(func() {
		unlock()
		g.gate.Leave()
	}), nil
}

func onceRelease(fn func()) func() {
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			fn()
		}
	}
}
