package session

import (
	"sync/atomic"
	"time"
)

// Tracker aggregates cross-session liveness for the Heartbeat operational
// event (wire.MsgHeartbeat): how many sessions currently hold a live
// connection, and how long the process has been up. A bare atomic counter,
// shared the same way the sequence counter is.
type Tracker struct {
	active int32
	start  time.Time
}

// NewTracker starts the uptime clock at construction time.
func NewTracker() *Tracker {
	return &Tracker{start: time.Now()}
}

func (t *Tracker) connected()    { atomic.AddInt32(&t.active, 1) }
func (t *Tracker) disconnected() { atomic.AddInt32(&t.active, -1) }

// ActiveConns returns the number of sessions currently in the CONNECTED
// state.
func (t *Tracker) ActiveConns() uint32 {
	n := atomic.LoadInt32(&t.active)
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// UptimeSeconds returns whole seconds elapsed since NewTracker.
func (t *Tracker) UptimeSeconds() uint64 {
	return uint64(time.Since(t.start) / time.Second)
}
