package proto

import (
	"encoding/binary"

	"github.com/tycoon-kv/tycoon/rpc/transport"
)

// --------------------------------------------------------------------------
// Response Reader
// --------------------------------------------------------------------------

// ResponseReader is a cursor over a framed socket's receive stream. Every
// read is exact-length: it either delivers all requested bytes or fails with
// a classified transport error, after which the socket is closed.
type ResponseReader struct {
	sock *transport.FramedSocket
}

// NewResponseReader wraps a leased socket for one response.
func NewResponseReader(sock *transport.FramedSocket) *ResponseReader {
	return &ResponseReader{sock: sock}
}

// ReadU8 reads a single byte.
func (r *ResponseReader) ReadU8() (byte, error) {
	b, err := r.sock.RecvExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a big-endian uint16.
func (r *ResponseReader) ReadU16() (uint16, error) {
	b, err := r.sock.RecvExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32 reads a big-endian uint32.
func (r *ResponseReader) ReadU32() (uint32, error) {
	b, err := r.sock.RecvExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadI64 reads a big-endian int64.
func (r *ResponseReader) ReadI64() (int64, error) {
	b, err := r.sock.RecvExact(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadDouble reads the two-word double format: integral part then fractional
// part scaled by 10^12.
func (r *ResponseReader) ReadDouble() (float64, error) {
	integ, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	fract, err := r.ReadI64()
	if err != nil {
		return 0, err
	}
	return float64(integ) + float64(fract)/1e12, nil
}

// ReadBytes reads exactly n bytes.
func (r *ResponseReader) ReadBytes(n int) ([]byte, error) {
	return r.sock.RecvExact(n)
}

// ReadLengthPrefixed reads a u32 length then that many bytes.
func (r *ResponseReader) ReadLengthPrefixed() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	return r.sock.RecvExact(int(n))
}
