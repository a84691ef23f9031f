// Package blob implements the self-describing binary formats exchanged with
// server-side scripts: a big-endian base-128 varint (1-8 bytes, values below
// 2^56) and the varint-prefixed map and list framings built on top of it.
//
// The package also provides the column-table codec used by table databases,
// which interleaves keys and values with NUL bytes.
//
// All functions are pure and allocation-conscious; none of them perform I/O.
//
// Wire layout:
//
//	varint:  every byte carries 7 payload bits, most significant group first.
//	         All bytes except the last have the high bit set.
//	map:     varint(klen) varint(vlen) key value ... repeated to end of buffer
//	list:    varint(len) item ... repeated to end of buffer
//	table:   key NUL value NUL ... (no length prefixes, NUL-free columns)
package blob
