package blob

// --------------------------------------------------------------------------
// Map format
// --------------------------------------------------------------------------

// EncodeMap serializes m as a concatenation of
// varint(klen) varint(vlen) key value items.
//
// Iteration order of Go maps is not stable, so two encodings of the same map
// may differ byte-wise; DecodeMap recovers the same map either way.
func EncodeMap(m map[string][]byte) ([]byte, error) {
	size := 0
	for k, v := range m {
		size += VarintLen(uint64(len(k))) + VarintLen(uint64(len(v))) + len(k) + len(v)
	}
	buf := make([]byte, 0, size)
	var err error
	for k, v := range m {
		if buf, err = AppendVarint(buf, uint64(len(k))); err != nil {
			return nil, err
		}
		if buf, err = AppendVarint(buf, uint64(len(v))); err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, v...)
	}
	return buf, nil
}

// DecodeMap parses a map blob. A truncated item returns ErrCorrupt.
func DecodeMap(b []byte) (map[string][]byte, error) {
	m := make(map[string][]byte)
	for len(b) > 0 {
		klen, n, err := ReadVarint(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		vlen, n, err := ReadVarint(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		if uint64(len(b)) < klen+vlen {
			return nil, ErrCorrupt
		}
		key := string(b[:klen])
		value := make([]byte, vlen)
		copy(value, b[klen:klen+vlen])
		m[key] = value
		b = b[klen+vlen:]
	}
	return m, nil
}

// --------------------------------------------------------------------------
// List format
// --------------------------------------------------------------------------

// EncodeList serializes items as a concatenation of varint(len) bytes items.
func EncodeList(items [][]byte) ([]byte, error) {
	size := 0
	for _, item := range items {
		size += VarintLen(uint64(len(item))) + len(item)
	}
	buf := make([]byte, 0, size)
	var err error
	for _, item := range items {
		if buf, err = AppendVarint(buf, uint64(len(item))); err != nil {
			return nil, err
		}
		buf = append(buf, item...)
	}
	return buf, nil
}

// DecodeList parses a list blob, preserving item order.
func DecodeList(b []byte) ([][]byte, error) {
	var items [][]byte
	for len(b) > 0 {
		ilen, n, err := ReadVarint(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		if uint64(len(b)) < ilen {
			return nil, ErrCorrupt
		}
		item := make([]byte, ilen)
		copy(item, b[:ilen])
		items = append(items, item)
		b = b[ilen:]
	}
	return items, nil
}
