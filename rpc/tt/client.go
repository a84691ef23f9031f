package tt

import (
	"strconv"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/tycoon-kv/tycoon/lib/serializer"
	"github.com/tycoon-kv/tycoon/rpc/common"
	"github.com/tycoon-kv/tycoon/rpc/proto"
	"github.com/tycoon-kv/tycoon/rpc/transport"
)

var Logger = logger.GetLogger("tt")

// --------------------------------------------------------------------------
// Wire constants
// --------------------------------------------------------------------------

// Every command begins with the dialect prefix 0xC8 followed by the opcode.
const magicPrefix = 0xc8

const (
	opPut      = 0x10
	opPutKeep  = 0x11
	opPutCat   = 0x12
	opPutShl   = 0x13
	opPutNR    = 0x18
	opOut      = 0x20
	opGet      = 0x30
	opMGet     = 0x31
	opVSiz     = 0x38
	opIterInit = 0x50
	opIterNext = 0x51
	opFwmKeys  = 0x58
	opAddInt   = 0x60
	opAddDbl   = 0x61
	opExt      = 0x68
	opSync     = 0x70
	opOptimize = 0x71
	opVanish   = 0x72
	opCopy     = 0x73
	opRestore  = 0x74
	opSetMst   = 0x78
	opRNum     = 0x80
	opSize     = 0x81
	opStat     = 0x88
	opMisc     = 0x90
)

// Response status bytes.
const (
	statusOK   = 0x00
	statusMiss = 0x01
)

// Ext locking modes. Record and global locks are mutually exclusive.
const (
	LockNone   uint32 = 0
	LockRecord uint32 = 0x1
	LockGlobal uint32 = 0x2
)

// Misc option: do not write this command to the update (replication) log.
const miscNoUpdateLog uint32 = 0x1

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client speaks the single-database binary dialect with its miscellaneous
// command surface, cursor iteration, table search and replication control.
//
// A Client and all its Caller views share one socket pool. A single caller
// id must not be used from multiple goroutines at once.
type Client struct {
	config     common.ClientConfig
	pool       *transport.SocketPool
	serializer serializer.IValueSerializer
	caller     uint64
}

// NewClient creates a client for the configured endpoint.
func NewClient(config common.ClientConfig) (*Client, error) {
	s, err := serializer.Lookup(config.Serializer)
	if err != nil {
		return nil, common.NewError(common.ErrBadArgument, "%v", err)
	}
	return &Client{
		config:     config,
		pool:       transport.NewSocketPool(config),
		serializer: s,
	}, nil
}

// Caller returns a view of the client bound to the given caller id.
func (c *Client) Caller(id uint64) *Client {
	view := *c
	view.caller = id
	return &view
}

// Checkin releases this caller's leased socket back to the idle pool.
func (c *Client) Checkin() {
	c.pool.Checkin(c.caller)
}

// CloseIdle closes idle sockets older than the cutoff and returns how many
// were closed.
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
// Store operations
// --------------------------------------------------------------------------

// Put stores a key/value pair, overwriting any existing record.
func (c *Client) Put(key string, value any) error {
	raw, err := c.encode(value)
	if err != nil {
		return err
	}
	_, err = c.statusOp(opPut, func(req *proto.RequestBuffer) {
		req.WriteKV(key, raw)
	})
	return err
}

// PutKeep stores a key/value pair only if the key does not exist yet. The
// bool result reports whether the record was stored.
func (c *Client) PutKeep(key string, value any) (bool, error) {
	raw, err := c.encode(value)
	if err != nil {
		return false, err
	}
	return c.statusOp(opPutKeep, func(req *proto.RequestBuffer) {
		req.WriteKV(key, raw)
	})
}

// PutCat appends value bytes to an existing record, creating it if absent.
func (c *Client) PutCat(key string, value any) error {
	raw, err := c.encode(value)
	if err != nil {
		return err
	}
	_, err = c.statusOp(opPutCat, func(req *proto.RequestBuffer) {
		req.WriteKV(key, raw)
	})
	return err
}

// PutShiftLeft appends value bytes and trims the record to width bytes from
// the right.
func (c *Client) PutShiftLeft(key string, value any, width int) error {
	raw, err := c.encode(value)
	if err != nil {
		return err
	}
	_, err = c.statusOp(opPutShl, func(req *proto.RequestBuffer) {
		req.WriteU32(uint32(len(key)))
		req.WriteU32(uint32(len(raw)))
		req.WriteU32(uint32(width))
		req.WriteBytes([]byte(key))
		req.WriteBytes(raw)
	})
	return err
}

// PutNoReply stores a key/value pair without reading a response.
func (c *Client) PutNoReply(key string, value any) error {
	raw, err := c.encode(value)
	if err != nil {
		return err
	}
	return c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(10 + len(key) + len(raw))
		req.WriteU8(magicPrefix)
		req.WriteU8(opPutNR)
		req.WriteKV(key, raw)
		return sock.SendAll(req.Bytes())
	})
}

// Out removes a record, reporting whether it existed.
func (c *Client) Out(key string) (bool, error) {
	return c.statusOp(opOut, func(req *proto.RequestBuffer) {
		req.WriteKey(key)
	})
}

// Get fetches one key. The bool result reports whether the key was present.
func (c *Client) Get(key string) (any, bool, error) {
	raw, ok, err := c.GetBytes(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	value, err := c.serializer.Decode(raw)
	if err != nil {
		return nil, false, common.NewError(common.ErrBadArgument, "decode value of %q: %v", key, err)
	}
	return value, true, nil
}

// GetBytes fetches one key without decoding the value.
func (c *Client) GetBytes(key string) ([]byte, bool, error) {
	var value []byte
	found := false

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(6 + len(key))
		req.WriteU8(magicPrefix)
		req.WriteU8(opGet)
		req.WriteKey(key)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "get")
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
		value = append([]byte(nil), b...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// MGet fetches several keys at once; missing keys are absent from the
// result. Values are decoded with the configured serializer.
func (c *Client) MGet(keys []string) (map[string]any, error) {
	raw, err := c.MGetRaw(keys)
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

// MGetRaw fetches several keys, bypassing the value serializer.
func (c *Client) MGetRaw(keys []string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))

	err := c.invoke(func(sock *transport.FramedSocket) error {
		size := 6
		for _, key := range keys {
			size += 4 + len(key)
		}
		req := proto.NewRequestBuffer(size)
		req.WriteU8(magicPrefix)
		req.WriteU8(opMGet)
		req.WriteKeyList(keys)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "mget")
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
			values[string(key)] = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// VSiz returns the stored size of a record's value in bytes. The bool result
// reports whether the key was present.
func (c *Client) VSiz(key string) (int, bool, error) {
	size := 0
	found := false

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(6 + len(key))
		req.WriteU8(magicPrefix)
		req.WriteU8(opVSiz)
		req.WriteKey(key)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "vsiz")
		if err != nil {
			return err
		}
		if status == statusMiss {
			return nil
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		size = int(n)
		found = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return size, found, nil
}

// Exists reports whether a key is present.
func (c *Client) Exists(key string) (bool, error) {
	_, found, err := c.VSiz(key)
	return found, err
}

// --------------------------------------------------------------------------
// Counters
// --------------------------------------------------------------------------

// AddInt adds n to the integer record stored under key, creating it from
// zero if absent, and returns the new value. The bool result is false when
// the existing record is not numeric.
func (c *Client) AddInt(key string, n int) (int, bool, error) {
	sum := 0
	ok := false

	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(10 + len(key))
		req.WriteU8(magicPrefix)
		req.WriteU8(opAddInt)
		req.WriteU32(uint32(len(key)))
		req.WriteU32(uint32(int32(n)))
		req.WriteBytes([]byte(key))
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "addint")
		if err != nil {
			return err
		}
		if status == statusMiss {
			return nil
		}
		v, err := r.ReadU32()
		if err != nil {
			return err
		}
		sum = int(int32(v))
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return sum, ok, nil
}

// AddDouble adds n to the floating-point record stored under key and
// returns the new value. Negative increments are not representable on the
// wire and are rejected with BadArgument.
func (c *Client) AddDouble(key string, n float64) (float64, bool, error) {
	sum := 0.0
	ok := false

	// assemble up front so a bad increment fails before any I/O
	req := proto.NewRequestBuffer(22 + len(key))
	req.WriteU8(magicPrefix)
	req.WriteU8(opAddDbl)
	req.WriteU32(uint32(len(key)))
	if err := req.WriteDouble(n); err != nil {
		return 0, false, err
	}
	req.WriteBytes([]byte(key))

	err := c.invoke(func(sock *transport.FramedSocket) error {
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "adddouble")
		if err != nil {
			return err
		}
		if status == statusMiss {
			return nil
		}
		v, err := r.ReadDouble()
		if err != nil {
			return err
		}
		sum = v
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return sum, ok, nil
}

// --------------------------------------------------------------------------
// Server-side scripts
// --------------------------------------------------------------------------

// Ext invokes a server-side script function with a key and value argument.
// lock selects the locking mode; the record and global locks are mutually
// exclusive. A nonzero status is reported as ScriptError.
func (c *Client) Ext(name string, key, value []byte, lock uint32) ([]byte, error) {
	if lock&LockRecord != 0 && lock&LockGlobal != 0 {
		return nil, common.NewError(common.ErrBadArgument, "record and global locks are mutually exclusive")
	}

	var result []byte
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(18 + len(name) + len(key) + len(value))
		req.WriteU8(magicPrefix)
		req.WriteU8(opExt)
		req.WriteU32(uint32(len(name)))
		req.WriteU32(lock)
		req.WriteU32(uint32(len(key)))
		req.WriteU32(uint32(len(value)))
		req.WriteBytes([]byte(name))
		req.WriteBytes(key)
		req.WriteBytes(value)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := r.ReadU8()
		if err != nil {
			return err
		}
		if status != statusOK {
			return common.NewByteError(common.ErrScript, status, "script %q failed", name)
		}
		b, err := r.ReadLengthPrefixed()
		if err != nil {
			return err
		}
		result = append([]byte(nil), b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Maintenance and replication
// --------------------------------------------------------------------------

// Sync flushes the database to storage.
func (c *Client) Sync() error {
	_, err := c.statusOp(opSync, nil)
	return err
}

// Optimize defragments the database, optionally with tuning parameters.
func (c *Client) Optimize(params string) error {
	_, err := c.statusOp(opOptimize, func(req *proto.RequestBuffer) {
		req.WriteKey(params)
	})
	return err
}

// Vanish removes every record.
func (c *Client) Vanish() error {
	_, err := c.statusOp(opVanish, nil)
	return err
}

// Copy snapshots the database file to the given path on the server host.
func (c *Client) Copy(path string) error {
	_, err := c.statusOp(opCopy, func(req *proto.RequestBuffer) {
		req.WriteKey(path)
	})
	return err
}

// Restore replays the update log from the given timestamp (unix
// microseconds).
func (c *Client) Restore(ts int64, opts uint32) error {
	_, err := c.statusOp(opRestore, func(req *proto.RequestBuffer) {
		req.WriteI64(ts)
		req.WriteU32(opts)
	})
	return err
}

// SetMaster points replication at a new master, or detaches when host is
// empty.
func (c *Client) SetMaster(host string, port int, ts int64, opts uint32) error {
	_, err := c.statusOp(opSetMst, func(req *proto.RequestBuffer) {
		req.WriteU32(uint32(len(host)))
		req.WriteU32(uint32(port))
		req.WriteI64(ts)
		req.WriteU32(opts)
		req.WriteBytes([]byte(host))
	})
	return err
}

// RNum returns the number of records.
func (c *Client) RNum() (int64, error) {
	return c.numOp(opRNum, "rnum")
}

// Size returns the database size in bytes.
func (c *Client) Size() (int64, error) {
	return c.numOp(opSize, "size")
}

// Stat returns the server's raw status report.
func (c *Client) Stat() ([]byte, error) {
	var stat []byte
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(2)
		req.WriteU8(magicPrefix)
		req.WriteU8(opStat)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		if _, err := c.readStatus(r, "stat"); err != nil {
			return err
		}
		b, err := r.ReadLengthPrefixed()
		if err != nil {
			return err
		}
		stat = append([]byte(nil), b...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// Status returns the server's status report parsed into a map.
func (c *Client) Status() (map[string]string, error) {
	raw, err := c.Stat()
	if err != nil {
		return nil, err
	}
	status := make(map[string]string)
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		status[key] = value
	}
	return status, nil
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

// statusOp sends one command whose response is just a status byte. The bool
// result is true on status 0 and false on the recoverable miss status.
func (c *Client) statusOp(op byte, writeBody func(req *proto.RequestBuffer)) (bool, error) {
	applied := false
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(64)
		req.WriteU8(magicPrefix)
		req.WriteU8(op)
		if writeBody != nil {
			writeBody(req)
		}
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		status, err := c.readStatus(r, "op 0x"+strconv.FormatUint(uint64(op), 16))
		if err != nil {
			return err
		}
		applied = status == statusOK
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// numOp sends one bodyless command whose response is a status byte followed
// by a 64-bit integer.
func (c *Client) numOp(op byte, name string) (int64, error) {
	var value int64
	err := c.invoke(func(sock *transport.FramedSocket) error {
		req := proto.NewRequestBuffer(2)
		req.WriteU8(magicPrefix)
		req.WriteU8(op)
		if err := sock.SendAll(req.Bytes()); err != nil {
			return err
		}

		r := proto.NewResponseReader(sock)
		if _, err := c.readStatus(r, name); err != nil {
			return err
		}
		v, err := r.ReadI64()
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// readStatus consumes the status byte. 0 and 1 are valid protocol outcomes;
// anything else is a server error.
func (c *Client) readStatus(r *proto.ResponseReader, op string) (byte, error) {
	status, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch status {
	case statusOK, statusMiss:
		return status, nil
	default:
		return status, common.NewByteError(common.ErrServer, status, "%s: server error status", op)
	}
}

func (c *Client) encode(value any) ([]byte, error) {
	raw, err := c.serializer.Encode(value)
	if err != nil {
		return nil, common.NewError(common.ErrBadArgument, "encode value: %v", err)
	}
	return raw, nil
}
