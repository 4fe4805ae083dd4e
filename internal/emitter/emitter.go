// Package emitter sends built datagrams over UDP multicast, maintaining
// throughput counters and a per-destination-port socket cache. The handle
// for a port is cloned out under the lock, then the send proceeds
// unlocked.
package emitter

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
)

// Emitter sends datagrams on a configured multicast group, non-blocking,
// with optional per-session destination port fan-out.
type Emitter struct {
	groupIP       net.IP
	defaultPort   int
	interfaceAddr string

	mu     sync.RWMutex
	byPort map[int]*connHandle

	packetsSent uint64
	bytesSent   uint64
	dropped     uint64

	dropCounter DropCounter
}

// DropCounter is the minimal counter interface a WOULDBLOCK drop is
// reported through. prometheus.Counter satisfies this without the
// emitter package importing internal/metrics directly.
type DropCounter interface {
	Inc()
}

// SetDropCounter wires an optional counter incremented once per
// WOULDBLOCK-dropped datagram, in addition to the internal Dropped()
// tally this Emitter always keeps.
func (e *Emitter) SetDropCounter(c DropCounter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropCounter = c
}

type connHandle struct {
	conn      *net.UDPConn
	connected bool // true if Dial-style connect() succeeded (fast path)
	remote    *net.UDPAddr
}

// New creates an Emitter bound to interfaceAddr with a default multicast
// destination of groupAddr:defaultPort. The primary socket is opened
// eagerly so construction failures surface at startup.
func New(groupAddr string, defaultPort int, interfaceAddr string) (*Emitter, error) {
	ip := net.ParseIP(groupAddr)
	if ip == nil {
		return nil, fmt.Errorf("emitter: invalid multicast address %q", groupAddr)
	}

	e := &Emitter{
		groupIP:       ip,
		defaultPort:   defaultPort,
		interfaceAddr: interfaceAddr,
		byPort:        make(map[int]*connHandle),
	}

	if _, err := e.handleForPort(defaultPort); err != nil {
		return nil, fmt.Errorf("emitter: socket setup failed: %w", err)
	}

	return e, nil
}

// handleForPort returns the cached socket handle for port, creating and
// caching it under lock on first use. Subsequent sends read the handle
// without holding the lock.
func (e *Emitter) handleForPort(port int) (*connHandle, error) {
	e.mu.RLock()
	h, ok := e.byPort[port]
	e.mu.RUnlock()
	if ok {
		return h, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.byPort[port]; ok {
		return h, nil
	}

	h, err := e.dialPort(port)
	if err != nil {
		return nil, err
	}
	e.byPort[port] = h
	return h, nil
}

func (e *Emitter) dialPort(port int) (*connHandle, error) {
	localAddr := &net.UDPAddr{IP: net.ParseIP(e.interfaceAddr), Port: 0}
	remoteAddr := &net.UDPAddr{IP: e.groupIP, Port: port}

	// Bind to (interface_addr, 0) for an ephemeral source port, then try
	// the connected fast path; fall back to unconnected sendto semantics
	// (implemented by always addressing WriteToUDP with remoteAddr) if
	// connect-style dialing is unavailable on this platform.
	conn, err := net.DialUDP("udp4", localAddr, remoteAddr)
	connected := err == nil
	if err != nil {
		conn, err = net.ListenUDP("udp4", localAddr)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", localAddr, err)
		}
	}

	// best effort; a default-sized kernel buffer still works
	_ = conn.SetWriteBuffer(1 << 20)

	pc := ipv4.NewPacketConn(conn)
	_ = pc.SetMulticastTTL(1)
	_ = pc.SetMulticastLoopback(false)

	return &connHandle{conn: conn, connected: connected, remote: remoteAddr}, nil
}

// Send transmits payload to the default multicast destination port,
// non-blocking: a WOULDBLOCK condition drops the datagram silently and is
// not reported as an error.
func (e *Emitter) Send(payload []byte) error {
	return e.SendToPort(payload, e.defaultPort)
}

// SendToPort transmits payload to the multicast group on a specific
// destination port, reusing (or lazily creating) a cached connected
// socket for that port.
func (e *Emitter) SendToPort(payload []byte, port int) error {
	h, err := e.handleForPort(port)
	if err != nil {
		return fmt.Errorf("emitter: socket for port %d: %w", port, err)
	}

	// An immediate write deadline makes the call return at once instead
	// of waiting on a full kernel send buffer, the stdlib equivalent of a
	// raw non-blocking socket's EWOULDBLOCK.
	_ = h.conn.SetWriteDeadline(time.Now())

	var n int
	if h.connected {
		n, err = h.conn.Write(payload)
	} else {
		n, err = h.conn.WriteToUDP(payload, h.remote)
	}

	if err != nil {
		if isWouldBlock(err) {
			atomic.AddUint64(&e.dropped, 1)
			e.mu.RLock()
			counter := e.dropCounter
			e.mu.RUnlock()
			if counter != nil {
				counter.Inc()
			}
			// Best-effort contract: drop silently, not an error.
			return nil
		}
		return fmt.Errorf("emitter: send to port %d: %w", port, err)
	}

	atomic.AddUint64(&e.packetsSent, 1)
	atomic.AddUint64(&e.bytesSent, uint64(n))

	// UDP implementations do not partially send; a short write is still
	// counted as sent above.
	return nil
}

func isWouldBlock(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// PacketsSent returns the monotonic total of datagrams actually written.
func (e *Emitter) PacketsSent() uint64 { return atomic.LoadUint64(&e.packetsSent) }

// BytesSent returns the monotonic total of bytes actually written.
func (e *Emitter) BytesSent() uint64 { return atomic.LoadUint64(&e.bytesSent) }

// Dropped returns the monotonic total of datagrams dropped on WOULDBLOCK.
func (e *Emitter) Dropped() uint64 { return atomic.LoadUint64(&e.dropped) }

// AveragePacketSize returns bytes/packets, or 0 if no packets sent yet.
func (e *Emitter) AveragePacketSize() float64 {
	packets := e.PacketsSent()
	if packets == 0 {
		return 0
	}
	return float64(e.BytesSent()) / float64(packets)
}

// Close releases every cached socket.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, h := range e.byPort {
		if err := h.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.byPort = make(map[int]*connHandle)
	return firstErr
}
