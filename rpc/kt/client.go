package kt

import (
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/tycoon-kv/tycoon/lib/serializer"
	"github.com/tycoon-kv/tycoon/rpc/common"
	"github.com/tycoon-kv/tycoon/rpc/proto"
	"github.com/tycoon-kv/tycoon/rpc/transport"
)

var Logger = logger.GetLogger("kt")

// --------------------------------------------------------------------------
// Wire constants
// --------------------------------------------------------------------------

const (
	magicSetBulk    = 0xb8
	magicRemoveBulk = 0xb9
	magicGetBulk    = 0xba
	magicPlayScript = 0xb4
	magicError      = 0xbf

	flagNoReply = 0x01
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client speaks the multi-database binary dialect. The zero caller id is
// used unless Caller derives a view for a different one; DB derives a view
// with another default database.
//
// A Client and all its views share one socket pool. A single caller id must
// not be used from multiple goroutines at once.
type Client struct {
	config     common.ClientConfig
	pool       *transport.SocketPool
	serializer serializer.IValueSerializer
	caller     uint64
	db         uint16
}

// RecordDetail is one record of a detailed bulk read, carrying the database
// echo and expiration alongside the pair.
type RecordDetail struct {
	DB    uint16
	Key   string
	Value []byte
	XT    int64
}

// NewClient creates a client for the configured endpoint. The serializer
// named in the config is resolved once at construction.
func NewClient(config common.ClientConfig) (*Client, error) {
	s, err := serializer.Lookup(config.Serializer)
	if err != nil {
		return nil, common.NewError(common.ErrBadArgument, "%v", err)
	}
	return &Client{
		config:     config,
		pool:       transport.NewSocketPool(config),
		serializer: s,
		db:         config.DefaultDB,
	}, nil
}

// Caller returns a view of the client bound to the given caller id. Views
// share the pool; each id leases its own socket.
func (c *Client) Caller(id uint64) *Client {
	view := *c
	view.caller = id
	return &view
}

// DB returns a view of the client whose calls address the given database.
func (c *Client) DB(db uint16) *Client {
	view := *c
	view.db = db
	return &view
}

// Checkin releases this caller's leased socket back to the idle pool.
func (c *Client) Checkin() {
	c.pool.Checkin(c.caller)
}

// CloseIdle closes idle sockets older than the cutoff and returns how many
// were closed. Intended to be driven periodically by the embedder.
func (c *Client) CloseIdle(cutoff time.Duration) int {
	return c.pool.CloseIdle(cutoff)
}

// Close closes every socket of the underlying pool.
func (c *Client) Close() {
	c.pool.CloseAll()
}

// PoolStats returns current occupancy of the underlying pool.
func (c *Client) PoolStats() transport.PoolStats {
	return c.pool.Stats()
}

// --------------------------------------------------------------------------
// Single-key convenience operations
// --------------------------------------------------------------------------

// Get fetches one key. The bool result reports whether the key was present.
func (c *Client) Get(key string) (any, bool, error) {
	values, err := c.GetBulk([]string{key})
	if err != nil {
		return nil, false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// GetBytes fetches one key without decoding the value.
func (c *Client) GetBytes(key string) ([]byte, bool, error) {
	values, err := c.GetBulkRaw([]string{key})
	if err != nil {
		return nil, false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

// Set stores one key with an expiration in seconds from now (0 = none).
func (c *Client) Set(key string, value any, xt int64) error {
	_, err := c.SetBulk(map[string]any{key: value}, xt)
	return err
}

// Remove deletes one key, reporting whether it existed.
func (c *Client) Remove(key string) (bool, error) {
	count, err := c.RemoveBulk([]string{key})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --------------------------------------------------------------------------
// Bulk reads
// --------------------------------------------------------------------------

// GetBulk fetches several keys and decodes the values with the configured
// serializer. Missing keys are simply absent from the result.
func (c *Client) GetBulk(keys []string) (map[string]any, error) {
	raw, err := c.GetBulkRaw(keys)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(raw))
	for key, b := range raw {
		value, err := c.serializer.Decode(b)
		if err != nil {
			return nil, common.NewError(common.ErrBadArgument, "decode value of %q: %v", key, err)
		}
		values[key] = value
	}
	return values, nil
}

// GetBulkRaw fetches several keys, bypassing the value serializer.
func (c *Client) GetBulkRaw(keys []string) (map[string][]byte, error) {
	details, err := c.GetBulkDetails(keys)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(details))
	for _, rec := range details {
		values[rec.Key] = rec.Value
	}
	return values, nil
}

// GetBulkDetails fetches several keys and returns the full per-record tuple
// including the database echo and expiration, values undecoded.
func (c *Client) GetBulkDetails(keys []string) ([]RecordDetail, error) {
	var details []RecordDetail

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(16 + bulkKeySize(keys))
		req.WriteU8(magicGetBulk)
		req.WriteU32(0)
		req.WriteKeyListWithDB(keys, c.db)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		if err := c.expectMagic(r, magicGetBulk); err != nil {
			return err
		}
		recs, err := c.readDetailRecords(r)
		if err != nil {
			return err
		}
		details = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// readDetailRecords consumes a counted list of db/key/value/xt tuples
func (c *Client) readDetailRecords(r *proto.ResponseReader) ([]RecordDetail, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	details := make([]RecordDetail, 0, count)
	for i := uint32(0); i < count; i++ {
		db, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		klen, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		vlen, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		xt, err := r.ReadI64()
		if err != nil {
			return nil, err
		}
		key, err := r.ReadBytes(int(klen))
		if err != nil {
			return nil, err
		}
		value, err := r.ReadBytes(int(vlen))
		if err != nil {
			return nil, err
		}
		details = append(details, RecordDetail{
			DB:    db,
			Key:   string(key),
			Value: append([]byte(nil), value...),
			XT:    xt,
		})
	}
	return details, nil
}

// GetBulkMixed fetches keys addressed to per-entry databases in one round
// trip, returning the full per-record tuples.
func (c *Client) GetBulkMixed(pairs []proto.DBKey) ([]RecordDetail, error) {
	var details []RecordDetail

	err := c.invoke(func(sock *transport.FramedSocket) error {
		size := 16
		for _, pair := range pairs {
			size += 10 + len(pair.Key)
		}
		req := proto.NewRequestBuffer(size)
		req.WriteU8(magicGetBulk)
		req.WriteU32(0)
		req.WriteDBKeyList(pairs)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		if err := c.expectMagic(r, magicGetBulk); err != nil {
			return err
		}
		recs, err := c.readDetailRecords(r)
		if err != nil {
			return err
		}
		details = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// --------------------------------------------------------------------------
// Bulk writes
// --------------------------------------------------------------------------

// SetBulk stores several records with a shared expiration and returns the
// stored count. Values are encoded with the configured serializer.
func (c *Client) SetBulk(records map[string]any, xt int64) (int, error) {
	raw, err := c.encodeRecords(records)
	if err != nil {
		return 0, err
	}
	return c.SetBulkRaw(raw, xt)
}

// SetBulkRaw stores several records, bypassing the value serializer.
func (c *Client) SetBulkRaw(records map[string][]byte, xt int64) (int, error) {
	return c.setBulk(records, xt, false)
}

// SetBulkNoReply stores several records without waiting for the server's
// acknowledgment. Values are encoded with the configured serializer.
func (c *Client) SetBulkNoReply(records map[string]any, xt int64) error {
	raw, err := c.encodeRecords(records)
	if err != nil {
		return err
	}
	_, err = c.setBulk(raw, xt, true)
	return err
}

func (c *Client) setBulk(records map[string][]byte, xt int64, noReply bool) (int, error) {
	recs := make([]proto.Record, 0, len(records))
	size := 16
	for key, value := range records {
		recs = append(recs, proto.Record{DB: c.db, Key: key, Value: value, XT: xt})
		size += 22 + len(key) + len(value)
	}

	count := 0
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(size)
		req.WriteU8(magicSetBulk)
		if noReply {
			req.WriteU32(flagNoReply)
		} else {
			req.WriteU32(0)
		}
		req.WriteRecordsWithDBExpire(recs)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}
		if noReply {
			return nil
		}

		r := proto.NewResponseReader(sock)
		if err := c.expectMagic(r, magicSetBulk); err != nil {
			return err
		}
		stored, err := r.ReadU32()
		if err != nil {
			return err
		}
		count = int(stored)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RemoveBulk deletes several keys and returns how many existed.
func (c *Client) RemoveBulk(keys []string) (int, error) {
	return c.removeBulk(keys, false)
}

// RemoveBulkNoReply deletes several keys without waiting for the server's
// acknowledgment.
func (c *Client) RemoveBulkNoReply(keys []string) error {
	_, err := c.removeBulk(keys, true)
	return err
}

func (c *Client) removeBulk(keys []string, noReply bool) (int, error) {
	count := 0
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(16 + bulkKeySize(keys))
		req.WriteU8(magicRemoveBulk)
		if noReply {
			req.WriteU32(flagNoReply)
		} else {
			req.WriteU32(0)
		}
		req.WriteKeyListWithDB(keys, c.db)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}
		if noReply {
			return nil
		}

		r := proto.NewResponseReader(sock)
		if err := c.expectMagic(r, magicRemoveBulk); err != nil {
			return err
		}
		removed, err := r.ReadU32()
		if err != nil {
			return err
		}
		count = int(removed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// --------------------------------------------------------------------------
// Server-side scripts
// --------------------------------------------------------------------------

// PlayScript invokes a server-side script with raw byte parameters and
// returns its raw result map.
func (c *Client) PlayScript(name string, params map[string][]byte) (map[string][]byte, error) {
	return c.playScript(name, params, false)
}

// PlayScriptValues invokes a server-side script, encoding parameter values
// and decoding result values with the configured serializer.
func (c *Client) PlayScriptValues(name string, params map[string]any) (map[string]any, error) {
	raw := make(map[string][]byte, len(params))
	for key, value := range params {
		b, err := c.serializer.Encode(value)
		if err != nil {
			return nil, common.NewError(common.ErrBadArgument, "encode param %q: %v", key, err)
		}
		raw[key] = b
	}
	rawResult, err := c.playScript(name, raw, false)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any, len(rawResult))
	for key, b := range rawResult {
		value, err := c.serializer.Decode(b)
		if err != nil {
			return nil, common.NewError(common.ErrBadArgument, "decode result %q: %v", key, err)
		}
		result[key] = value
	}
	return result, nil
}

// PlayScriptNoReply invokes a server-side script without waiting for its
// result.
func (c *Client) PlayScriptNoReply(name string, params map[string][]byte) error {
	_, err := c.playScript(name, params, true)
	return err
}

func (c *Client) playScript(name string, params map[string][]byte, noReply bool) (map[string][]byte, error) {
	size := 16 + len(name)
	for key, value := range params {
		size += 8 + len(key) + len(value)
	}

	var result map[string][]byte
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(size)
		req.WriteU8(magicPlayScript)
		if noReply {
			req.WriteU32(flagNoReply)
		} else {
			req.WriteU32(0)
		}
		req.WriteU32(uint32(len(name)))
		req.WriteU32(uint32(len(params)))
		req.WriteBytes([]byte(name))
		for key, value := range params {
			req.WriteKV(key, value)
		}
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}
		if noReply {
			return nil
		}

		r := proto.NewResponseReader(sock)
		if err := c.expectMagic(r, magicPlayScript); err != nil {
			return err
		}
		count, err := r.ReadU32()
		if err != nil {
			return err
		}
		result = make(map[string][]byte, count)
		for i := uint32(0); i < count; i++ {
			klen, err := r.ReadU32()
			if err != nil {
				return err
			}
			vlen, err := r.ReadU32()
			if err != nil {
				return err
			}
			key, err := r.ReadBytes(int(klen))
			if err != nil {
				return err
			}
			value, err := r.ReadBytes(int(vlen))
			if err != nil {
				return err
			}
			result[string(key)] = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// invoke runs one operation on this caller's leased socket. Any failure
// discards the socket; clean completions check it back in.
func (c *Client) invoke(fn func(sock *transport.FramedSocket) error) error {
	sock, err := c.pool.Checkout(c.caller)
	if err != nil {
		return err
	}
	if err := fn(sock); err != nil {
		Logger.Debugf("operation failed, discarding socket: %v", err)
		c.pool.Discard(c.caller)
		return err
	}
	c.pool.Checkin(c.caller)
	return nil
}

// expectMagic consumes the first response byte and validates it against the
// request's magic. The error magic raises a server error without attempting
// to parse further.
func (c *Client) expectMagic(r *proto.ResponseReader, want byte) error {
	got, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch got {
	case want:
		return nil
	case magicError:
		return common.NewByteError(common.ErrServer, got, "server reported an internal error")
	default:
		return common.NewByteError(common.ErrProtocol, got, "unexpected response magic, want 0x%02x", want)
	}
}

func (c *Client) encodeRecords(records map[string]any) (map[string][]byte, error) {
	raw := make(map[string][]byte, len(records))
	for key, value := range records {
		b, err := c.serializer.Encode(value)
		if err != nil {
			return nil, common.NewError(common.ErrBadArgument, "encode value of %q: %v", key, err)
		}
		raw[key] = b
	}
	return raw, nil
}

func bulkKeySize(keys []string) int {
	size := 0
	for _, key := range keys {
		size += 10 + len(key)
	}
	return size
}

