// Package supervise reimplements the teacher module's ManagedGo/
// PanicCapturingGo pattern (go.viam.com/utils) without pulling in the
// rest of the Viam utils module: a background goroutine paired with a
// cleanup closure that always runs when the goroutine returns (even on
// panic), tracked by a shared WaitGroup so callers can join every
// supervised goroutine at shutdown.
package supervise

import "sync"

// Group tracks a set of supervised goroutines so the owner can wait for
// all of them to exit.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn in a new goroutine and guarantees onExit runs once fn
// returns, even if fn panics. A panic in fn is recovered here rather
// than crossing the goroutine boundary (spec.md §7: "no exception
// crosses a thread boundary"); the panic is swallowed first, then onExit
// still runs. The group's WaitGroup counts the goroutine from the
// moment Go is called until onExit completes.
func (g *Group) Go(fn func(), onExit func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer onExit()
		defer func() {
			recover()
		}()
		fn()
	}()
}

// Wait blocks until every goroutine started via Go has called its
// onExit closure.
func (g *Group) Wait() {
	g.wg.Wait()
}
