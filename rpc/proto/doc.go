// Package proto provides the request/response primitives shared by both
// protocol engines: an append-only request buffer with the key/value framing
// variants the dialects use, and an exact-length response cursor over a
// framed socket.
//
// The discipline is always the same: a request is fully assembled in memory
// and sent in one write; the response is consumed with exact-length reads
// driven by the length prefixes already in the stream. One request is in
// flight per socket at a time.
//
// All multi-byte integers are big-endian. Doubles travel as two 64-bit
// words, the integral part and the fractional part scaled by 10^12;
// negative doubles are rejected client-side.
package proto
