package tt

import (
	"strconv"

	"github.com/tycoon-kv/tycoon/rpc/common"
	"github.com/tycoon-kv/tycoon/rpc/proto"
	"github.com/tycoon-kv/tycoon/rpc/transport"
)

// --------------------------------------------------------------------------
// The miscellaneous command channel
// --------------------------------------------------------------------------

// Misc sends one command over the generic fluent channel: a command name and
// a list of raw byte arguments, answered by a list of raw byte results. The
// bool result is false when the server reports the recoverable miss status.
// When updateLog is false the command is excluded from the replication log.
func (c *Client) Misc(name string, args [][]byte, updateLog bool) ([][]byte, bool, error) {
	var results [][]byte
	applied := false

	err := c.invoke(func(sock *transport.FramedSocket) error {
		size := 14 + len(name)
		for _, arg := range args {
			size += 4 + len(arg)
		}
		req := proto.NewRequestBuffer(size)
		req.WriteU8(magicPrefix)
		req.WriteU8(opMisc)
		req.WriteU32(uint32(len(name)))
		if updateLog {
			req.WriteU32(0)
		} else {
			req.WriteU32(miscNoUpdateLog)
		}
		req.WriteU32(uint32(len(args)))
		req.WriteBytes([]byte(name))
		for _, arg := range args {
			req.WriteU32(uint32(len(arg)))
			req.WriteBytes(arg)
		}
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "misc "+name)
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
		results = make([][]byte, 0, count)
		for i := uint32(0); i < count; i++ {
			b, err := r.ReadLengthPrefixed()
			if err != nil {
				return err
			}
			results = append(results, append([]byte(nil), b...))
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return results, applied, nil
}

// --------------------------------------------------------------------------
// Bulk helpers built on Misc
// --------------------------------------------------------------------------

// PutList stores several records in one round trip. Values are encoded with
// the configured serializer.
func (c *Client) PutList(records map[string]any) error {
	args := make([][]byte, 0, len(records)*2)
	for key, value := range records {
		raw, err := c.encode(value)
		if err != nil {
			return err
		}
		args = append(args, []byte(key), raw)
	}
	_, _, err := c.Misc("putlist", args, true)
	return err
}

// OutList removes several records in one round trip.
func (c *Client) OutList(keys []string) error {
	args := make([][]byte, 0, len(keys))
	for _, key := range keys {
		args = append(args, []byte(key))
	}
	_, _, err := c.Misc("outlist", args, true)
	return err
}

// GetList fetches several records in one round trip; missing keys are
// absent from the result.
func (c *Client) GetList(keys []string) (map[string]any, error) {
	args := make([][]byte, 0, len(keys))
	for _, key := range keys {
		args = append(args, []byte(key))
	}
	results, ok, err := c.Misc("getlist", args, true)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(results)/2)
	if !ok {
		return values, nil
	}
	return c.decodePairs(results)
}

// GetPart returns a byte range of a record's value. A negative end reads to
// the end of the value.
func (c *Client) GetPart(key string, start, end int) ([]byte, bool, error) {
	args := [][]byte{[]byte(key), []byte(strconv.Itoa(start))}
	if end >= 0 {
		args = append(args, []byte(strconv.Itoa(end)))
	}
	results, ok, err := c.Misc("getpart", args, true)
	if err != nil {
		return nil, false, err
	}
	if !ok || len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// GetRange fetches every record with start <= key, up to max records
// (0 = unlimited), stopping before stop when it is non-empty.
func (c *Client) GetRange(start string, max int, stop string) (map[string]any, error) {
	args := [][]byte{[]byte(start), []byte(strconv.Itoa(max))}
	if stop != "" {
		args = append(args, []byte(stop))
	}
	results, ok, err := c.Misc("range", args, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return c.decodePairs(results)
}

// MatchRegex fetches every record whose key matches the regular expression,
// up to max records (0 = unlimited).
func (c *Client) MatchRegex(regex string, max int) (map[string]any, error) {
	args := [][]byte{[]byte(regex), []byte(strconv.Itoa(max))}
	results, ok, err := c.Misc("regex", args, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return c.decodePairs(results)
}

// ClearCache drops the server's in-memory caches.
func (c *Client) ClearCache() error {
	_, _, err := c.Misc("cacheclear", nil, true)
	return err
}

// GenUID generates a fresh unique id on the server.
func (c *Client) GenUID() (int64, error) {
	results, ok, err := c.Misc("genuid", nil, true)
	if err != nil {
		return 0, err
	}
	if !ok || len(results) == 0 {
		return 0, common.NewError(common.ErrProtocol, "genuid returned no value")
	}
	uid, err := strconv.ParseInt(string(results[0]), 10, 64)
	if err != nil {
		return 0, common.NewError(common.ErrProtocol, "genuid returned %q", results[0])
	}
	return uid, nil
}

// decodePairs folds a flat [key, value, key, value, ...] result list into a
// decoded map.
func (c *Client) decodePairs(results [][]byte) (map[string]any, error) {
	values := make(map[string]any, len(results)/2)
	for i := 0; i+1 < len(results); i += 2 {
		key := string(results[i])
		value, err := c.serializer.Decode(results[i+1])
		if err != nil {
			return nil, common.NewError(common.ErrBadArgument, "decode value of %q: %v", key, err)
		}
		values[key] = value
	}
	return values, nil
}
