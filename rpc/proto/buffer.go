package proto

import (
	"encoding/binary"
	"math"

	"github.com/tycoon-kv/tycoon/rpc/common"
)

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record is one key/value pair addressed to a database with an expiration.
type Record struct {
	DB    uint16
	Key   string
	Value []byte
	XT    int64
}

// --------------------------------------------------------------------------
// Request Buffer
// --------------------------------------------------------------------------

// RequestBuffer assembles one request fully in memory before it is sent in a
// single write. All multi-byte integers are big-endian.
type RequestBuffer struct {
	buf []byte
}

// NewRequestBuffer creates a buffer with the given capacity hint.
func NewRequestBuffer(sizeHint int) *RequestBuffer {
	return &RequestBuffer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the assembled request.
func (b *RequestBuffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes assembled so far.
func (b *RequestBuffer) Len() int {
	return len(b.buf)
}

// --------------------------------------------------------------------------
// Primitive writers
// --------------------------------------------------------------------------

// WriteU8 appends a single byte.
func (b *RequestBuffer) WriteU8(v byte) {
	b.buf = append(b.buf, v)
}

// WriteU16 appends a big-endian uint16.
func (b *RequestBuffer) WriteU16(v uint16) {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
}

// WriteU32 appends a big-endian uint32.
func (b *RequestBuffer) WriteU32(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

// WriteI64 appends a big-endian int64.
func (b *RequestBuffer) WriteI64(v int64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
}

// WriteDouble appends a float64 as two uint64 words: the integral part and
// the fractional part scaled by 10^12. Negative values are not representable
// in this format and are rejected before anything is written.
func (b *RequestBuffer) WriteDouble(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return common.NewError(common.ErrBadArgument, "double %v not representable on the wire", v)
	}
	integ := math.Trunc(v)
	fract := uint64((v - integ) * 1e12)
	b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(integ))
	b.buf = binary.BigEndian.AppendUint64(b.buf, fract)
	return nil
}

// WriteBytes appends raw bytes without a length prefix.
func (b *RequestBuffer) WriteBytes(v []byte) {
	b.buf = append(b.buf, v...)
}

// --------------------------------------------------------------------------
// Key/value framing variants
// --------------------------------------------------------------------------

// WriteKey appends u32 length then the key bytes.
func (b *RequestBuffer) WriteKey(key string) {
	b.WriteU32(uint32(len(key)))
	b.buf = append(b.buf, key...)
}

// WriteKeyList appends u32 count then each key with WriteKey.
func (b *RequestBuffer) WriteKeyList(keys []string) {
	b.WriteU32(uint32(len(keys)))
	for _, key := range keys {
		b.WriteKey(key)
	}
}

// WriteKeyListWithDB appends u32 count then, per key, u16 db and the
// length-prefixed key. All keys share the same database index.
func (b *RequestBuffer) WriteKeyListWithDB(keys []string, db uint16) {
	b.WriteU32(uint32(len(keys)))
	for _, key := range keys {
		b.WriteU16(db)
		b.WriteKey(key)
	}
}

// DBKey addresses one key in a specific database.
type DBKey struct {
	DB  uint16
	Key string
}

// WriteDBKeyList appends u32 count then, per entry, u16 db and the
// length-prefixed key, with a per-entry database index.
func (b *RequestBuffer) WriteDBKeyList(pairs []DBKey) {
	b.WriteU32(uint32(len(pairs)))
	for _, pair := range pairs {
		b.WriteU16(pair.DB)
		b.WriteKey(pair.Key)
	}
}

// WriteKV appends u32 klen, u32 vlen, key bytes, value bytes.
func (b *RequestBuffer) WriteKV(key string, value []byte) {
	b.WriteU32(uint32(len(key)))
	b.WriteU32(uint32(len(value)))
	b.buf = append(b.buf, key...)
	b.buf = append(b.buf, value...)
}

// WriteRecordsWithDBExpire appends u32 count then, per record,
// u16 db, u32 klen, u32 vlen, i64 xt, key bytes, value bytes. Records carry
// their own db and xt; zero xt is mapped to the no-expiration sentinel.
func (b *RequestBuffer) WriteRecordsWithDBExpire(records []Record) {
	b.WriteU32(uint32(len(records)))
	for _, rec := range records {
		b.WriteU16(rec.DB)
		b.WriteU32(uint32(len(rec.Key)))
		b.WriteU32(uint32(len(rec.Value)))
		b.WriteI64(common.ExpireOnWire(rec.XT))
		b.buf = append(b.buf, rec.Key...)
		b.buf = append(b.buf, rec.Value...)
	}
}
