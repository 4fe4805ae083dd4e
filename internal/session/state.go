package session

import "github.com/sicarius01/CryptoFeeder/internal/wire"

// maxRetries is the number of reconnect attempts a session tolerates
// before terminating permanently.
const maxRetries = 10

// backoffSchedule returns the delay before retry attempt k (k >= 0), in
// milliseconds: 1000ms for k=0, otherwise min(1000*2^min(k,6), 60000).
func backoffSchedule(k int) int64 {
	if k <= 0 {
		return 1000
	}
	shift := uint(k)
	if shift > 6 {
		shift = 6
	}
	delay := int64(1000) << shift
	if delay > 60000 {
		delay = 60000
	}
	return delay
}

// transition records the from/to pair for one state-machine edge. The
// supervisor never calls into arbitrary transitions, it always applies
// the one edge that corresponds to what just happened.
type transition struct {
	From wire.ConnStatus
	To   wire.ConnStatus
}

var validTransitions = map[transition]bool{
	{wire.ConnDisconnected, wire.ConnConnecting}: true,
	{wire.ConnConnecting, wire.ConnConnected}:    true,
	{wire.ConnConnected, wire.ConnDisconnected}:  true,
	{wire.ConnConnected, wire.ConnReconnecting}:  true,
	{wire.ConnReconnecting, wire.ConnConnecting}: true,
	// A handshake failure never reaches CONNECTED, so CONNECTING also
	// has a direct edge into the retry path.
	{wire.ConnConnecting, wire.ConnReconnecting}: true,
}

// isValidTransition reports whether from->to is a recognized edge, or a
// transition into the terminal FAILED state (which is reachable from any
// state on retry exhaustion).
func isValidTransition(from, to wire.ConnStatus) bool {
	if to == wire.ConnFailed {
		return true
	}
	return validTransitions[transition{from, to}]
}
