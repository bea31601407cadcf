package match

import "sync/atomic"

// latch is the processing guard around round resolution and match completion.
// Only the holder may resolve; every other trigger is dropped.
type latch struct {
	held atomic.Bool
}

func (l *latch) acquire() bool { return l.held.CompareAndSwap(false, true) }
func (l *latch) release()      { l.held.Store(false) }
func (l *latch) busy() bool    { return l.held.Load() }
