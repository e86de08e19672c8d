package web

import "sync/atomic"

// atomicBool wraps atomic.Bool for a process-wide readiness flag.
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) set(val bool) { b.v.Store(val) }
func (b *atomicBool) get() bool    { return b.v.Load() }
