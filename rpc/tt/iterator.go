package tt

import (
	"github.com/tycoon-kv/tycoon/rpc/proto"
	"github.com/tycoon-kv/tycoon/rpc/transport"
)

// --------------------------------------------------------------------------
// Cursor operations
// --------------------------------------------------------------------------

// IterInit resets the server-side cursor to the first record.
func (c *Client) IterInit() error {
	_, err := c.statusOp(opIterInit, nil)
	return err
}

// IterNext advances the cursor and returns the next key. The bool result is
// false when the cursor is exhausted.
func (c *Client) IterNext() (string, bool, error) {
	key := ""
	found := false

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(2)
		req.WriteU8(magicPrefix)
		req.WriteU8(opIterNext)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "iternext")
		if err != nil {
			return err
		}
		if status == statusMiss {
			return nil
		}
		b, err := r.ReadLengthPrefixed()
		if err != nil {
			return err
		}
		key = string(b)
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return key, found, nil
}

// --------------------------------------------------------------------------
// Iterators
// --------------------------------------------------------------------------

// Iterator walks every key once. It is lazy, single-pass and not
// restartable; mutating the database during iteration is unsupported.
type Iterator struct {
	c       *Client
	started bool
	done    bool
}

// Iterator returns a fresh key iterator. The cursor is initialized on the
// first Next call.
func (c *Client) Iterator() *Iterator {
	return &Iterator{c: c}
}

// Next returns the next key. The bool result is false once the sequence is
// exhausted; further calls keep reporting the end without touching the
// server.
func (it *Iterator) Next() (string, bool, error) {
	if it.done {
		return "", false, nil
	}
	if !it.started {
		if err := it.c.IterInit(); err != nil {
			it.done = true
			return "", false, err
		}
		it.started = true
	}
	key, ok, err := it.c.IterNext()
	if err != nil {
		it.done = true
		return "", false, err
	}
	if !ok {
		it.done = true
	}
	return key, ok, nil
}

// Keys drains a fresh iterator and returns every key.
func (c *Client) Keys() ([]string, error) {
	it := c.Iterator()
	var keys []string
	for {
		key, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return keys, nil
		}
		keys = append(keys, key)
	}
}

// --------------------------------------------------------------------------
// Key/value iteration over the misc channel
// --------------------------------------------------------------------------

// KVIterator walks every record as decoded key/value pairs, using the
// miscellaneous command channel's cursor. Same single-pass contract as
// Iterator.
type KVIterator struct {
	c       *Client
	started bool
	done    bool
	err     error // positioning failure, surfaced on the first Next
}

// KVIterator returns a fresh key/value iterator starting at the first
// record, or at start when it is non-empty.
func (c *Client) KVIterator(start string) *KVIterator {
	it := &KVIterator{c: c}
	if start != "" {
		it.started = true
		if _, _, err := c.Misc("iterinit", [][]byte{[]byte(start)}, true); err != nil {
			it.done = true
			it.err = err
		}
	}
	return it
}

// Next returns the next record. The bool result is false once the sequence
// is exhausted.
func (it *KVIterator) Next() (string, any, bool, error) {
	if it.done {
		err := it.err
		it.err = nil
		return "", nil, false, err
	}
	if !it.started {
		if _, _, err := it.c.Misc("iterinit", nil, true); err != nil {
			it.done = true
			return "", nil, false, err
		}
		it.started = true
	}
	results, ok, err := it.c.Misc("iternext", nil, true)
	if err != nil {
		it.done = true
		return "", nil, false, err
	}
	if !ok || len(results) < 2 {
		it.done = true
		return "", nil, false, nil
	}
	key := string(results[0])
	value, err := it.c.serializer.Decode(results[1])
	if err != nil {
		it.done = true
		return "", nil, false, err
	}
	return key, value, true, nil
}

// IterFrom collects every record from start onward into a map, mirroring
// cursor iteration over the misc channel.
func (c *Client) IterFrom(start string) (map[string]any, error) {
	it := c.KVIterator(start)
	records := make(map[string]any)
	for {
		key, value, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return records, nil
		}
		records[key] = value
	}
}

// --------------------------------------------------------------------------
// Prefix matching
// --------------------------------------------------------------------------

// FwmKeys returns up to max keys sharing the given prefix.
func (c *Client) FwmKeys(prefix string, max int) ([]string, error) {
	var keys []string

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(10 + len(prefix))
		req.WriteU8(magicPrefix)
		req.WriteU8(opFwmKeys)
		req.WriteU32(uint32(len(prefix)))
		req.WriteU32(uint32(max))
		req.WriteBytes([]byte(prefix))
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "fwmkeys")
		if err != nil {
			return err
		}
		if status == statusMiss {
			return nil
		}
		count, err := r.ReadU32()
		if err != nil {
			return err
		}
		keys = make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			b, err := r.ReadLengthPrefixed()
			if err != nil {
				return err
			}
			keys = append(keys, string(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// MatchPrefix returns up to max keys sharing the given prefix.
func (c *Client) MatchPrefix(prefix string, max int) ([]string, error) {
	return c.FwmKeys(prefix, max)
}
