package bus

import "sync/atomic"

// atomicCounter is a tiny monotonic counter, used for the Publisher's drop
// count (read through Publisher.Dropped) without pulling in a metrics
// dependency for something this small.
type atomicCounter struct {
	v atomic.Uint64
}

func (c *atomicCounter) Add(delta uint64) { c.v.Add(delta) }
func (c *atomicCounter) Load() uint64     { return c.v.Load() }
