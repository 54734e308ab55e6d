package indexer

import "sync/atomic"

// runFlag is a non-blocking on/off switch using atomic compare-and-swap.
type runFlag struct {
	state atomic.Int32 // 0 = stopped, 1 = running
}

// TrySet flips the flag on. Returns false if it was already on.
func (f *runFlag) TrySet() bool {
	return f.state.CompareAndSwap(0, 1)
}

// TryClear flips the flag off. Returns false if it was already off.
func (f *runFlag) TryClear() bool {
	return f.state.CompareAndSwap(1, 0)
}

func (f *runFlag) IsSet() bool {
	return f.state.Load() == 1
}
