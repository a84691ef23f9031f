package transport

import (
	"net"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/tycoon-kv/tycoon/rpc/common"
)

var Logger = logger.GetLogger("transport")

// recvChunk bounds how much is pulled from the kernel per read
const recvChunk = 64 * 1024

// --------------------------------------------------------------------------
// Framed Socket
// --------------------------------------------------------------------------

// FramedSocket owns one TCP connection and provides the exact-length read
// and all-or-nothing write discipline the wire protocols require.
//
// After any failed SendAll or RecvExact the socket is closed and must not be
// reused; the pool discards it and the next checkout dials a fresh one.
//
// A FramedSocket is not safe for concurrent use; the pool's per-caller lease
// guarantees a single user at a time.
type FramedSocket struct {
	conn    net.Conn
	buf     []byte        // receive buffer, append-only until purged
	read    int           // consumed prefix of buf, read <= len(buf)
	timeout time.Duration // per-read receive deadline, 0 disables
	closed  bool
}

// NewFramedSocket wraps an established connection. The timeout applies to
// each underlying read.
func NewFramedSocket(conn net.Conn, timeout time.Duration) *FramedSocket {
	return &FramedSocket{conn: conn, timeout: timeout}
}

// RecvExact returns exactly n bytes from the connection. Bytes already
// buffered are served first; the remainder is read in chunks of up to 64 KiB.
// On any failure the socket is closed and the error classified.
func (s *FramedSocket) RecvExact(n int) ([]byte, error) {
	if s.closed {
		return nil, common.NewError(common.ErrConnectionClosed, "recv on closed socket")
	}

	for len(s.buf)-s.read < n {
		if s.timeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
				s.Close()
				return nil, common.ClassifySocketError(err, "recv")
			}
		}
		chunk := make([]byte, recvChunk)
		read, err := s.conn.Read(chunk)
		if read > 0 {
			s.buf = append(s.buf, chunk[:read]...)
			continue
		}
		if err == nil {
			// a zero-byte read without an error still means the peer is gone
			err = net.ErrClosed
		}
		cerr := common.ClassifySocketError(err, "recv")
		s.Close()
		return nil, cerr
	}

	out := s.buf[s.read : s.read+n]
	s.read += n
	if s.read == len(s.buf) {
		// fully consumed: release the buffer (out keeps the backing array)
		s.buf = nil
		s.read = 0
	}
	return out, nil
}

// SendAll writes every byte of b to the connection. Any failure closes the
// socket and reports ConnectionClosed.
func (s *FramedSocket) SendAll(b []byte) error {
	if s.closed {
		return common.NewError(common.ErrConnectionClosed, "send on closed socket")
	}
	if _, err := s.conn.Write(b); err != nil {
		s.Close()
		return common.NewError(common.ErrConnectionClosed, "send: %v", err)
	}
	return nil
}

// Close shuts the connection down and releases resources. It is idempotent
// and reports whether this call actually closed the socket.
func (s *FramedSocket) Close() bool {
	if s.closed {
		return false
	}
	s.closed = true
	s.buf = nil
	s.read = 0
	if err := s.conn.Close(); err != nil {
		Logger.Debugf("close: %v", err)
	}
	return true
}

// Closed reports whether the socket has been closed.
func (s *FramedSocket) Closed() bool {
	return s.closed
}
