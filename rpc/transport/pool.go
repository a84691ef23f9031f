package transport

import (
	"net"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tycoon-kv/tycoon/rpc/common"
)

// --------------------------------------------------------------------------
// Pool metrics
// --------------------------------------------------------------------------

var (
	poolDials     = metrics.GetOrCreateCounter(`tycoon_pool_dials_total`)
	poolCheckouts = metrics.GetOrCreateCounter(`tycoon_pool_checkouts_total`)
	poolReaped    = metrics.GetOrCreateCounter(`tycoon_pool_reaped_total`)
	poolDiscarded = metrics.GetOrCreateCounter(`tycoon_pool_discarded_total`)
)

// --------------------------------------------------------------------------
// Socket Pool
// --------------------------------------------------------------------------

// SocketPool hands out framed sockets under a per-caller lease: a caller id
// maps to at most one socket, nested operations by the same caller reuse it,
// and distinct callers never share a socket.
//
// Idle sockets wait in a min-heap ordered by release time so CloseIdle can
// reap the stalest first. The mutex guards only the idle heap; it is never
// held across dialing or any socket I/O. The in-use map is a concurrent map
// keyed by caller id.
type SocketPool struct {
	config common.ClientConfig

	inUse *xsync.MapOf[uint64, *FramedSocket]

	mu   sync.Mutex
	free *connHeap
}

// PoolStats is a point-in-time snapshot of pool occupancy.
type PoolStats struct {
	InUse int
	Idle  int
}

// NewSocketPool creates a pool for the configured endpoint. No connection
// is dialed until the first checkout.
func NewSocketPool(config common.ClientConfig) *SocketPool {
	return &SocketPool{
		config: config,
		inUse:  xsync.NewMapOf[uint64, *FramedSocket](),
		free:   newConnHeap(),
	}
}

// Checkout returns the caller's leased socket, creating one if needed. A
// caller that already holds an open socket gets it back (re-entrant lease);
// otherwise the stalest idle socket is reused, and only if none is idle a
// new connection is dialed.
func (p *SocketPool) Checkout(caller uint64) (*FramedSocket, error) {
	poolCheckouts.Inc()

	if sock, ok := p.inUse.Load(caller); ok && !sock.Closed() {
		return sock, nil
	}

	p.mu.Lock()
	sock, ok := p.free.PopStalest()
	p.mu.Unlock()

	// skip sockets that died while idle
	for ok && sock.Closed() {
		p.mu.Lock()
		sock, ok = p.free.PopStalest()
		p.mu.Unlock()
	}

	if !ok {
		var err error
		sock, err = p.dial()
		if err != nil {
			return nil, err
		}
	}

	p.inUse.Store(caller, sock)
	return sock, nil
}

// Checkin releases the caller's socket back to the idle heap with the
// current timestamp, iff it is still open. In non-pooling mode the lease is
// kept so the caller's next checkout reuses the same socket.
func (p *SocketPool) Checkin(caller uint64) {
	sock, ok := p.inUse.Load(caller)
	if !ok {
		return
	}
	if sock.Closed() {
		p.inUse.Delete(caller)
		return
	}
	if !p.config.Pooling {
		return
	}
	p.inUse.Delete(caller)
	p.mu.Lock()
	p.free.AddConn(sock, time.Now().UnixNano())
	p.mu.Unlock()
}

// Discard closes and drops the caller's leased socket without returning it
// to the idle heap. Used after any failed operation.
func (p *SocketPool) Discard(caller uint64) {
	if sock, ok := p.inUse.LoadAndDelete(caller); ok {
		sock.Close()
		poolDiscarded.Inc()
		Logger.Debugf("discarded socket of caller %d", caller)
	}
}

// CloseIdle closes every idle socket released longer than cutoff ago,
// stalest first, stopping at the first recent one. It returns how many were
// closed. Sockets currently leased are never touched.
func (p *SocketPool) CloseIdle(cutoff time.Duration) int {
	deadline := time.Now().Add(-cutoff).UnixNano()
	closed := 0

	p.mu.Lock()
	for {
		top, ok := p.free.Peek()
		if !ok || top.released > deadline {
			break
		}
		sock, _ := p.free.PopStalest()
		sock.Close()
		closed++
	}
	p.mu.Unlock()

	if closed > 0 {
		poolReaped.Add(closed)
		Logger.Debugf("reaped %d idle sockets", closed)
	}
	return closed
}

// CloseAll closes every socket, leased and idle, and clears both
// collections.
func (p *SocketPool) CloseAll() {
	p.mu.Lock()
	for {
		sock, ok := p.free.PopStalest()
		if !ok {
			break
		}
		sock.Close()
	}
	p.mu.Unlock()

	p.inUse.Range(func(caller uint64, sock *FramedSocket) bool {
		sock.Close()
		p.inUse.Delete(caller)
		return true
	})
}

// Stats returns current pool occupancy.
func (p *SocketPool) Stats() PoolStats {
	p.mu.Lock()
	idle := p.free.Len()
	p.mu.Unlock()
	return PoolStats{InUse: p.inUse.Size(), Idle: idle}
}

// dial establishes and configures one new TCP connection
func (p *SocketPool) dial() (*FramedSocket, error) {
	conn, err := net.Dial("tcp", p.config.Endpoint())
	if err != nil {
		return nil, common.NewError(common.ErrTransport, "dial %s: %v", p.config.Endpoint(), err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok && p.config.TCPNoDelay {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, common.NewError(common.ErrTransport, "set nodelay: %v", err)
		}
	}
	poolDials.Inc()
	Logger.Debugf("dialed %s", p.config.Endpoint())
	return NewFramedSocket(conn, time.Duration(p.config.TimeoutSecond)*time.Second), nil
}
