// Package seqcounter provides the process-wide monotonic sequence number
// shared by every emitted datagram, regardless of message type or session.
package seqcounter

import "sync/atomic"

// Counter is a process-wide atomic sequence number generator: a bare
// atomic uint64, fetch-and-add, no locking. Construct with New; the first
// Next() call returns 1.
type Counter struct {
	v uint64
}

// New returns a Counter whose first Next() call returns 1.
func New() *Counter {
	return &Counter{}
}

// Next atomically increments and returns the new sequence number. The
// first call returns 1.
func (c *Counter) Next() uint64 {
	return atomic.AddUint64(&c.v, 1)
}

// Load returns the most recently issued sequence number without
// allocating a new one (0 if Next has never been called).
func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.v)
}
