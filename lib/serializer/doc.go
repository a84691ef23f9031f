// Package serializer implements the pluggable value codecs applied to every
// value on its way to and from the wire.
//
// The package focuses on:
//   - A minimal two-method interface (IValueSerializer) shared by all codecs
//   - Byte-transparent defaults: the raw and text serializers pass []byte
//     values through untouched
//   - Structured codecs (JSON, msgpack, gob) for applications that store
//     rich values rather than plain strings
//
// Key Components:
//
//   - NewRawSerializer: identity codec, bytes in and bytes out
//   - NewTextSerializer: UTF-8 text, the default for both client dialects
//   - NewJSONSerializer: compact JSON
//   - NewMsgPackSerializer: msgpack via vmihailenco/msgpack
//   - NewGobSerializer: opaque Go-native blobs with guaranteed round trips
//   - NewTableSerializer: NUL-interleaved column tables for table databases
//
// Usage Example:
//
//	s := serializer.NewJSONSerializer()
//	raw, _ := s.Encode(map[string]any{"a": []any{1, 2, 3}})
//	v, _ := s.Decode(raw)
//
// Some operations on the protocol engines have a Raw counterpart (GetBytes,
// GetBulkRaw, SetBulkRaw, MGetRaw; PlayScript next to PlayScriptValues) that
// bypasses the configured serializer for that call, which is equivalent to
// swapping in NewRawSerializer for that call only. The misc-channel bulk
// helpers (PutList, GetList, GetRange, MatchRegex, IterFrom) and
// SetBulkNoReply have no Raw counterpart and always use the serializer.
package serializer
