// Package lockreg provides per-user mutual exclusion for balance mutations.
// Gates are created on demand and removed again once nobody holds or waits on
// them, so an idle user id pins no memory.
package lockreg

import (
	"context"
	"sync"
)

// gate serializes one user's critical sections. The buffered channel holds the
// token while locked; refs counts holders plus waiters.
type gate struct {
	ch   chan struct{}
	refs int
}

// Registry hands out per-user gates. Operations on distinct user ids never
// contend on anything but the short-lived map lock.
type Registry struct {
	mu    sync.Mutex
	gates map[int64]*gate
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{gates: make(map[int64]*gate)}
}

// Acquire blocks until the gate for userID is free or ctx is done. On success
// it returns a release func that must be called exactly once; calling it more
// than once is a no-op. A single operation only ever needs one user's gate, so
// there is no lock ordering to get wrong.
func (r *Registry) Acquire(ctx context.Context, userID int64) (func(), error) {
	r.mu.Lock()
	g, ok := r.gates[userID]
	if !ok {
		g = &gate{ch: make(chan struct{}, 1)}
		r.gates[userID] = g
	}
	g.refs++
	r.mu.Unlock()

	select {
	case g.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-g.ch
				r.put(userID, g)
			})
		}
		return release, nil
	case <-ctx.Done():
		r.put(userID, g)
		return nil, ctx.Err()
	}
}

// put drops one reference and deletes the gate when it is the last. A held
// gate always has refs >= 1, so it can never be deleted out from under its
// holder.
func (r *Registry) put(userID int64, g *gate) {
	r.mu.Lock()
	g.refs--
	if g.refs == 0 {
		delete(r.gates, userID)
	}
	r.mu.Unlock()
}

// Len reports the number of live gates.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}
