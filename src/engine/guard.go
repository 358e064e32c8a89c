package engine

import (
	"errors"
	"sync/atomic"
)

var ErrReentrantCall = errors.New("reentrant call rejected")

// Guard is a non-blocking reentrancy barrier shared by every externally
// reachable mutating entry point. A venue is untrusted code reached from
// inside a mutating flow; if it calls back into the engine before the
// current invocation finishes, the nested call is rejected outright
// rather than queued.
type Guard struct {
	entered atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// Enter claims the guard or fails with ErrReentrantCall.
func (g *Guard) Enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Leave releases the guard.
func (g *Guard) Leave() {
	g.entered.Store(false)
}
